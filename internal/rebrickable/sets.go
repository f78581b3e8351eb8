package rebrickable

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/h0rv/brickhunt/internal/domain"
)

// maxPages bounds pagination in case the API keeps handing out next links.
const maxPages = 50

// NormalizeSetNum trims the set number and appends the default "-1" variant
// when none is given: "6020" becomes "6020-1".
func NormalizeSetNum(setNum string) string {
	setNum = strings.TrimSpace(setNum)
	if setNum == "" || strings.Contains(setNum, "-") {
		return setNum
	}
	return setNum + "-1"
}

// Fetch returns the set metadata and its raw inventory rows.
// Rows are returned as the API lists them; repeated (part, color, spare)
// triples are left for the ledger to merge.
// Returns domain.ErrNotFound if the set does not exist.
func (c *Client) Fetch(ctx context.Context, setNum string) (domain.Manifest, error) {
	setNum = NormalizeSetNum(setNum)
	if setNum == "" {
		return domain.Manifest{}, &domain.ValidationError{Index: -1, Field: "set_num", Reason: "must not be empty"}
	}

	set, err := c.GetSet(ctx, setNum)
	if err != nil {
		return domain.Manifest{}, err
	}

	categories, err := c.GetPartCategories(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}

	entries, err := c.GetSetParts(ctx, setNum, categories)
	if err != nil {
		return domain.Manifest{}, err
	}

	return domain.Manifest{Set: set, Entries: entries}, nil
}

// GetSet returns the metadata of one set.
func (c *Client) GetSet(ctx context.Context, setNum string) (domain.SetMeta, error) {
	var resp struct {
		SetNum    string `json:"set_num"`
		Name      string `json:"name"`
		Year      int    `json:"year"`
		NumParts  int    `json:"num_parts"`
		SetImgURL string `json:"set_img_url"`
		SetURL    string `json:"set_url"`
	}

	if err := c.makeRequest(ctx, "get set", "/lego/sets/"+url.PathEscape(setNum)+"/", &resp); err != nil {
		return domain.SetMeta{}, fmt.Errorf("failed to get set %s: %w", setNum, err)
	}

	return domain.SetMeta{
		SetNum:   resp.SetNum,
		Name:     resp.Name,
		Year:     resp.Year,
		NumParts: resp.NumParts,
		ImageURL: resp.SetImgURL,
		SetURL:   resp.SetURL,
	}, nil
}

// GetPartCategories returns category names keyed by category code.
func (c *Client) GetPartCategories(ctx context.Context) (map[string]string, error) {
	categories := make(map[string]string)
	next := "/lego/part_categories/?page_size=1000"

	for page := 0; next != "" && page < maxPages; page++ {
		var resp struct {
			Next    *string `json:"next"`
			Results []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"results"`
		}

		if err := c.makeRequest(ctx, "list part categories", next, &resp); err != nil {
			return nil, fmt.Errorf("failed to list part categories: %w", err)
		}

		for _, cat := range resp.Results {
			categories[strconv.Itoa(cat.ID)] = cat.Name
		}
		next = deref(resp.Next)
	}
	if next != "" {
		return nil, truncated("list part categories")
	}

	return categories, nil
}

// GetSetParts returns the inventory rows of a set, following pagination.
// Category names are resolved through categories; unknown codes keep an empty name.
func (c *Client) GetSetParts(ctx context.Context, setNum string, categories map[string]string) ([]domain.ManifestEntry, error) {
	var entries []domain.ManifestEntry
	next := "/lego/sets/" + url.PathEscape(setNum) + "/parts/?page_size=1000&inc_part_details=1"

	for page := 0; next != "" && page < maxPages; page++ {
		var resp struct {
			Next    *string `json:"next"`
			Results []struct {
				Part struct {
					PartNum    string `json:"part_num"`
					Name       string `json:"name"`
					PartCatID  int    `json:"part_cat_id"`
					PartImgURL string `json:"part_img_url"`
				} `json:"part"`
				Color struct {
					ID   int    `json:"id"`
					Name string `json:"name"`
					RGB  string `json:"rgb"`
				} `json:"color"`
				ElementID string `json:"element_id"`
				Quantity  int    `json:"quantity"`
				IsSpare   bool   `json:"is_spare"`
			} `json:"results"`
		}

		if err := c.makeRequest(ctx, "list set parts", next, &resp); err != nil {
			return nil, fmt.Errorf("failed to list parts of %s: %w", setNum, err)
		}

		for _, r := range resp.Results {
			entry := domain.ManifestEntry{
				PartNum:   r.Part.PartNum,
				PartName:  r.Part.Name,
				ImageURL:  r.Part.PartImgURL,
				ColorID:   r.Color.ID,
				ColorName: r.Color.Name,
				ColorRGB:  strings.TrimPrefix(strings.ToUpper(r.Color.RGB), "#"),
				ElementID: r.ElementID,
				IsSpare:   r.IsSpare,
				QtyNeeded: r.Quantity,
			}
			if r.Part.PartCatID > 0 {
				entry.CategoryCode = strconv.Itoa(r.Part.PartCatID)
				entry.CategoryName = categories[entry.CategoryCode]
			}
			entries = append(entries, entry)
		}
		next = deref(resp.Next)
	}
	if next != "" {
		return nil, truncated("list set parts")
	}

	return entries, nil
}

// truncated reports pagination that still had a next link after maxPages.
func truncated(op string) error {
	return &domain.ProviderError{Op: op, Err: fmt.Errorf("still paginating after %d pages", maxPages)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
