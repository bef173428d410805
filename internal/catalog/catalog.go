// Package catalog holds the in-app purchase products and what each one
// grants.  The built-in catalog can be replaced by a YAML file.
package catalog

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Catalog is an immutable, ordered set of products.
type Catalog struct {
	products []model.Product
	byID     map[string]model.Product
}

// New validates products and builds a Catalog.  Ids must be unique and
// made of letters, digits, '_' or '-'; deck ids follow the same rule
// because they are used as document paths.
func New(products []model.Product) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]model.Product, len(products))}
	for _, p := range products {
		if !idPattern.MatchString(p.ID) {
			return nil, fmt.Errorf("catalog: invalid product id %q", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		if p.Grant.Gems < 0 {
			return nil, fmt.Errorf("catalog: product %q grants negative gems", p.ID)
		}
		for _, d := range p.Grant.UnlockDecks {
			if !idPattern.MatchString(d) {
				return nil, fmt.Errorf("catalog: product %q has invalid deck id %q", p.ID, d)
			}
		}
		c.byID[p.ID] = p
		c.products = append(c.products, p)
	}
	return c, nil
}

type fileFormat struct {
	Products []model.Product `yaml:"products"`
}

// Load reads a YAML catalog file of the form
//
//	products:
//	  - id: gems_50
//	    name: 50 Gems
//	    grant: {gems: 50}
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog: %s lists no products", path)
	}
	return New(f.Products)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New([]model.Product{
		{ID: "gems_50", Name: "50 Gems", Price: "0.99", Grant: model.Grant{Gems: 50}},
		{ID: "gems_100", Name: "100 Gems", Price: "1.99", Grant: model.Grant{Gems: 100}},
		{ID: "gems_500", Name: "500 Gems", Price: "7.99", Grant: model.Grant{Gems: 500}},
		{ID: "premium", Name: "Premium", Description: "Unlocks every deck slot", Price: "4.99",
			Grant: model.Grant{Premium: true, UnlockDecks: []string{"deck2", "deck3"}}},
		{ID: "card_pack_longball", Name: "Long Ball", Description: "Unlocks the LongBall card", Price: "0.99",
			Grant: model.Grant{UnlockCards: []string{"LongBall"}}},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (model.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Products returns the products in catalog order.
func (c *Catalog) Products() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}
