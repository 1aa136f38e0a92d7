package nutrition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

const opLookup = "nutrition.lookup"

// usdaNutrientNames maps FoodData Central nutrient names onto recognised nutrients.
var usdaNutrientNames = map[string]food.Nutrient{
	"Energy":                      food.Calories,
	"Protein":                     food.Protein,
	"Carbohydrate, by difference": food.Carbohydrates,
	"Total lipid (fat)":           food.Fat,
}

type searchResponse struct {
	TotalHits int `json:"totalHits"`
	Foods     []struct {
		FdcID         int    `json:"fdcId"`
		Description   string `json:"description"`
		FoodNutrients []struct {
			NutrientName string   `json:"nutrientName"`
			UnitName     string   `json:"unitName"`
			Value        *float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

// USDAClient queries the FoodData Central search API, taking the first hit.
type USDAClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logging.Logger
}

func NewUSDAClient(cfg config.NutritionConfig, client *http.Client, logger *logging.Logger) *USDAClient {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &USDAClient{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

func (c *USDAClient) Lookup(ctx context.Context, name string) (food.NutrientRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return food.NutrientRecord{}, ErrNotFound
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return food.NutrientRecord{}, c.unavailable(name, err)
	}

	q := url.Values{}
	q.Set("query", name)
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/foods/search?"+q.Encode(), nil)
	if err != nil {
		return food.NutrientRecord{}, c.unavailable(name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return food.NutrientRecord{}, c.unavailable(name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return food.NutrientRecord{}, c.unavailable(name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return food.NutrientRecord{}, c.unavailable(name, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var parsed searchResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return food.NutrientRecord{}, c.unavailable(name, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Foods) == 0 {
		c.logger.InfoTag("NUTRITION", "no match for %q", name)
		return food.NutrientRecord{}, ErrNotFound
	}

	var (
		rec      food.NutrientRecord
		energyKJ *food.Amount
	)
	first := parsed.Foods[0]
	for _, fn := range first.FoodNutrients {
		n, ok := usdaNutrientNames[fn.NutrientName]
		if !ok || fn.Value == nil {
			continue
		}
		unit := fn.UnitName
		if unit == "" {
			unit = defaultUnit(n)
		}
		amount := food.Measured(*fn.Value, unit)

		if n == food.Calories && !strings.EqualFold(unit, "KCAL") {
			if energyKJ == nil {
				energyKJ = &amount
			}
			continue
		}
		if !rec.Get(n).Available() {
			rec.Set(n, amount)
		}
	}
	if !rec.Calories.Available() && energyKJ != nil {
		rec.Calories = *energyKJ
	}

	c.logger.DebugTag("NUTRITION", "%q matched fdc_id=%d description=%q", name, first.FdcID, first.Description)
	return rec, nil
}

func (c *USDAClient) unavailable(name string, err error) error {
	c.logger.WarnTag("NUTRITION", "lookup %q failed: %v", name, err)
	return platformerrors.Rewrap(platformerrors.KindUpstream, opLookup, "lookup unavailable", fmt.Errorf("%w: %v", ErrUnavailable, err))
}

func defaultUnit(n food.Nutrient) string {
	if n == food.Calories {
		return "KCAL"
	}
	return "G"
}
