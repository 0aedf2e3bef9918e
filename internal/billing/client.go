// Package billing is the client for the platform's billing service.  The
// finalization engine asks it to create-and-issue one bill per held
// reservation; any failure is fatal for the finalization and rolls the
// transaction back.
package billing

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"
)

// LineItem is one row of a bill, covering a participant-type group.
type LineItem struct {
    Title           string  `json:"title"`
    Description     string  `json:"description"`
    UnitPrice       int64   `json:"unit_price"`
    Quantity        int     `json:"quantity"`
    DiscountPercent float64 `json:"discount_percent"`
}

// Request describes the bill to issue.  Metadata carries free-form
// correlation values such as the reservation tracking code.
type Request struct {
    Title    string            `json:"title"`
    Items    []LineItem        `json:"items"`
    DueAt    time.Time         `json:"due_at"`
    Metadata map[string]string `json:"metadata,omitempty"`
}

// Bill is the billing service's answer for a successfully issued bill.
type Bill struct {
    ID          uint64 `json:"id"`
    Number      string `json:"number"`
    TotalAmount int64  `json:"total_amount"`
}

// RejectedError reports that the billing service refused the request with
// a business reason, as opposed to a transport failure.
type RejectedError struct {
    Status int
    Reason string
}

func (e *RejectedError) Error() string {
    return fmt.Sprintf("billing rejected request (status %d): %s", e.Status, e.Reason)
}

// Client talks to the billing service over HTTP.
type Client struct {
    baseURL string
    http    *http.Client
}

// NewClient returns a Client for the billing service at baseURL.  The
// timeout bounds each issue call end to end.
func NewClient(baseURL string, timeout time.Duration) *Client {
    return &Client{
        baseURL: baseURL,
        http:    &http.Client{Timeout: timeout},
    }
}

// Issue creates and issues a bill.  On a non-2xx response it returns a
// *RejectedError carrying the service's reason.
func (c *Client) Issue(ctx context.Context, req *Request) (*Bill, error) {
    body, err := json.Marshal(req)
    if err != nil {
        return nil, err
    }
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/bills/issue", bytes.NewReader(body))
    if err != nil {
        return nil, err
    }
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        var payload struct {
            Error string `json:"error"`
        }
        raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
        _ = json.Unmarshal(raw, &payload)
        if payload.Error == "" {
            payload.Error = http.StatusText(resp.StatusCode)
        }
        return nil, &RejectedError{Status: resp.StatusCode, Reason: payload.Error}
    }

    var bill Bill
    if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
        return nil, fmt.Errorf("decode billing response: %w", err)
    }
    return &bill, nil
}
