package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/auctionfi/auctionpay"
)

// ItemFileName is the file name every listing's metadata is stored under.
const ItemFileName = auctionpay.MetadataFileName

// ItemMetadata is the off-chain description of an auctioned item, stored as
// item.json under the artifact handle the auction references.
type ItemMetadata struct {
	ProductName         string `json:"product_name"`
	ProductDescription  string `json:"product_description"`
	ProductPictures     string `json:"product_pictures"`
	ProductManufacturer string `json:"product_manufacturer"`
	ProductModel        string `json:"product_model"`
	ProductStartPrice   string `json:"product_start_price"`
	ProductAuctionToken string `json:"product_auction_token"`
	ProductBuyItPrice   string `json:"product_buy_it_price"`
	ProductDuration     int    `json:"product_duration"`
}

const itemSchema = `{
	"type": "object",
	"required": ["product_name", "product_description", "product_start_price", "product_auction_token", "product_buy_it_price", "product_duration"],
	"properties": {
		"product_name": {"type": "string", "minLength": 1},
		"product_description": {"type": "string"},
		"product_pictures": {"type": "string"},
		"product_manufacturer": {"type": "string"},
		"product_model": {"type": "string"},
		"product_start_price": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"},
		"product_auction_token": {"type": "string", "enum": ["USDC", "DAI"]},
		"product_buy_it_price": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"},
		"product_duration": {"type": "integer", "minimum": 1}
	}
}`

// Validator checks item metadata documents against the listing schema.
// It implements auctionpay.MetadataValidator.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the listing schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(itemSchema))
	if err != nil {
		return nil, fmt.Errorf("compile item schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a raw metadata document.
func (v *Validator) Validate(doc []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate item metadata: %w", err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return fmt.Errorf("item metadata invalid: %s", strings.Join(reasons, "; "))
	}
	return nil
}

// Upload validates the metadata, stores it as item.json and returns its
// handle. The handle is not guaranteed retrievable yet; callers poll it
// before referencing it on-chain.
func Upload(ctx context.Context, store auctionpay.ArtifactStore, v *Validator, meta ItemMetadata) (auctionpay.ArtifactHandle, error) {
	doc, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal item metadata: %w", err)
	}
	if err := v.Validate(doc); err != nil {
		return "", err
	}
	return store.Put(ctx, []auctionpay.ArtifactFile{{
		Name:    ItemFileName,
		Size:    int64(len(doc)),
		Content: doc,
	}})
}

// Fetch retrieves and decodes a stored item.json.
func Fetch(ctx context.Context, store auctionpay.ArtifactStore, handle auctionpay.ArtifactHandle) (ItemMetadata, error) {
	files, err := store.Get(ctx, handle)
	if err != nil {
		return ItemMetadata{}, err
	}
	for _, f := range files {
		if f.Name != ItemFileName {
			continue
		}
		var meta ItemMetadata
		if err := json.Unmarshal(f.Content, &meta); err != nil {
			return ItemMetadata{}, fmt.Errorf("decode %s: %w", ItemFileName, err)
		}
		return meta, nil
	}
	return ItemMetadata{}, fmt.Errorf("artifact %s has no %s", handle, ItemFileName)
}

// FormatHandle abbreviates a handle for display and logs.
func FormatHandle(handle auctionpay.ArtifactHandle) string {
	s := string(handle)
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}
