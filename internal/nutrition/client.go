package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrLookupUnavailable covers every reason a lookup yields no data. It is
// logged, never returned to callers of Lookup.
var ErrLookupUnavailable = errors.New("fruit information unavailable")

const (
	DefaultBaseURL = "https://www.fruityvice.com"
	DefaultTimeout = 5 * time.Second

	maxBodySize = 1 << 20
)

// Nutritions are amounts per 100 g as reported by the API.
type Nutritions struct {
	Calories      float64 `json:"calories"`
	Fat           float64 `json:"fat"`
	Sugar         float64 `json:"sugar"`
	Carbohydrates float64 `json:"carbohydrates"`
	Protein       float64 `json:"protein"`
}

// FruitInfo is the taxonomy and nutrition record for one fruit.
type FruitInfo struct {
	Name       string     `json:"name"`
	Family     string     `json:"family"`
	Order      string     `json:"order"`
	Genus      string     `json:"genus"`
	Nutritions Nutritions `json:"nutritions"`
}

// Client queries a Fruityvice-compatible API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("nutrition"),
	}
}

// Lookup fetches info for a cleaned, singular fruit name such as "apple".
// The boolean is false whenever no complete record could be obtained.
func (c *Client) Lookup(ctx context.Context, name string) (FruitInfo, bool) {
	info, err := c.fetch(ctx, name)
	if err != nil {
		c.logger.Warn("fruit lookup failed", zap.String("fruit", name), zap.Error(err))
		return FruitInfo{}, false
	}
	return *info, true
}

func (c *Client) fetch(ctx context.Context, name string) (*FruitInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("%w: empty fruit name", ErrLookupUnavailable)
	}

	endpoint := c.baseURL + "/api/fruit/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrLookupUnavailable, err)
	}
	return decodeFruit(raw)
}

// decodeFruit requires every field to be present so a partial record is never shown.
func decodeFruit(raw []byte) (*FruitInfo, error) {
	var payload struct {
		Name       *string `json:"name"`
		Family     *string `json:"family"`
		Order      *string `json:"order"`
		Genus      *string `json:"genus"`
		Nutritions *struct {
			Calories      *float64 `json:"calories"`
			Fat           *float64 `json:"fat"`
			Sugar         *float64 `json:"sugar"`
			Carbohydrates *float64 `json:"carbohydrates"`
			Protein       *float64 `json:"protein"`
		} `json:"nutritions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrLookupUnavailable, err)
	}

	for field, v := range map[string]*string{
		"name":   payload.Name,
		"family": payload.Family,
		"order":  payload.Order,
		"genus":  payload.Genus,
	} {
		if v == nil || strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrLookupUnavailable, field)
		}
	}
	n := payload.Nutritions
	if n == nil || n.Calories == nil || n.Fat == nil || n.Sugar == nil || n.Carbohydrates == nil || n.Protein == nil {
		return nil, fmt.Errorf("%w: incomplete nutritions", ErrLookupUnavailable)
	}

	return &FruitInfo{
		Name:   *payload.Name,
		Family: *payload.Family,
		Order:  *payload.Order,
		Genus:  *payload.Genus,
		Nutritions: Nutritions{
			Calories:      *n.Calories,
			Fat:           *n.Fat,
			Sugar:         *n.Sugar,
			Carbohydrates: *n.Carbohydrates,
			Protein:       *n.Protein,
		},
	}, nil
}
