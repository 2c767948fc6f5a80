package b2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// DefaultAPIURL is where account authorization is requested.
const DefaultAPIURL = "https://api.backblazeb2.com"

const apiPrefix = "/b2api/v1/"

// Client authorizes B2 accounts. The zero value is ready to use.
type Client struct {
	// APIURL is the base URL for b2_authorize_account.
	// If empty, DefaultAPIURL is used.
	APIURL string

	// HTTPClient is the http.Client used to make requests.
	// If HTTPClient is nil, then http.DefaultClient is used.
	HTTPClient *http.Client
}

// Error represents an error returned from the B2 API
type Error struct {
	Op      string `json:"-"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("b2 %s: %s (code %d, %q)", e.Op, e.Message, e.Status, e.Code)
}

// Account is an authorized B2 account session.
type Account struct {
	AccountID   string  `json:"accountId"`
	AuthToken   string  `json:"authorizationToken"`
	APIURL      string  `json:"apiUrl"`
	DownloadURL string  `json:"downloadUrl"`
	Allowed     Allowed `json:"allowed"`

	client *Client
}

// Allowed describes the restrictions of the application key used to
// authorize. BucketID is empty unless the key is restricted to one bucket.
type Allowed struct {
	BucketID     string       `json:"bucketId"`
	BucketName   string       `json:"bucketName"`
	NamePrefix   string       `json:"namePrefix"`
	Capabilities Capabilities `json:"capabilities"`
}

// Bucket is a B2 bucket
type Bucket struct {
	ID   string `json:"bucketId"`
	Name string `json:"bucketName"`
	Type string `json:"bucketType"` // "allPrivate" "allPublic" "snapshot"
}

// DownloadAuthorization is a token that authorizes downloads of files in
// one bucket whose names start with FileNamePrefix.
type DownloadAuthorization struct {
	BucketID           string `json:"bucketId"`
	FileNamePrefix     string `json:"fileNamePrefix"`
	AuthorizationToken string `json:"authorizationToken"`
}

func (c *Client) http() *http.Client {
	if c == nil || c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	if c == nil || c.APIURL == "" {
		return DefaultAPIURL
	}
	return strings.TrimSuffix(c.APIURL, "/")
}

func (c *Client) do(op string, req *http.Request, out interface{}) error {
	res, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	d := json.NewDecoder(res.Body)
	if res.StatusCode != http.StatusOK {
		e := &Error{Op: op}
		d.Decode(e)
		if e.Status == 0 {
			e.Status = res.StatusCode
		}
		return e
	}
	if err := d.Decode(out); err != nil {
		return fmt.Errorf("b2 %s: decoding response: %w", op, err)
	}
	return nil
}

// AuthorizeAccount exchanges an application key for an account session.
// Transport failures are returned as is; API rejections as *Error.
func (c *Client) AuthorizeAccount(ctx context.Context, keyID, key string) (*Account, error) {
	const op = "b2_authorize_account"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+apiPrefix+op, nil)
	if err != nil {
		return nil, fmt.Errorf("b2 %s: %w", op, err)
	}
	req.SetBasicAuth(keyID, key)

	acct := &Account{}
	if err := c.do(op, req, acct); err != nil {
		return nil, err
	}
	acct.client = c
	return acct, nil
}

func (a *Account) api(ctx context.Context, op string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(a.APIURL, "/")+apiPrefix+op, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("b2 %s: %w", op, err)
	}
	req.Header.Set("Authorization", a.AuthToken)
	req.Header.Set("Content-Type", "application/json")
	return a.client.do(op, req, out)
}

// ListBuckets lists every bucket in the account.
func (a *Account) ListBuckets(ctx context.Context) ([]Bucket, error) {
	req := struct {
		ID string `json:"accountId"`
	}{a.AccountID}
	res := struct {
		Buckets []Bucket `json:"buckets"`
	}{}
	if err := a.api(ctx, "b2_list_buckets", &req, &res); err != nil {
		return nil, err
	}
	return res.Buckets, nil
}

// FindBucket returns the bucket called name. It returns an error wrapping
// b2middleware.ErrBucketNotFound when no bucket has that name.
func (a *Account) FindBucket(ctx context.Context, name string) (*Bucket, error) {
	buckets, err := a.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		if buckets[i].Name == name {
			return &buckets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no bucket %q", b2middleware.ErrBucketNotFound, name)
}

// GetDownloadAuthorization issues a download token for files in bucketID
// whose names start with prefix. An empty prefix covers the whole bucket.
// valid is truncated to whole seconds.
func (a *Account) GetDownloadAuthorization(ctx context.Context, bucketID, prefix string, valid time.Duration) (*DownloadAuthorization, error) {
	req := struct {
		BucketID string `json:"bucketId"`
		Prefix   string `json:"fileNamePrefix"`
		Valid    int64  `json:"validDurationInSeconds"`
	}{bucketID, prefix, int64(valid / time.Second)}
	res := &DownloadAuthorization{}
	if err := a.api(ctx, "b2_get_download_authorization", &req, res); err != nil {
		return nil, err
	}
	return res, nil
}
