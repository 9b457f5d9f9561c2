package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/app/services"
	shopgraphql "github.com/farmshop/storefront/pkg/graphql"
	"github.com/farmshop/storefront/pkg/response"
	"github.com/graphql-go/graphql"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type APIController struct {
	catalog *services.CatalogService
	ping    Pinger
	graphql http.HandlerFunc
}

func NewAPIController(catalog *services.CatalogService, ping Pinger) (*APIController, error) {
	ac := &APIController{catalog: catalog, ping: ping}
	schema, err := shopgraphql.NewSchema(ac.catalogQuery())
	if err != nil {
		return nil, err
	}
	ac.graphql = shopgraphql.Handler(schema)
	return ac, nil
}

// goodsType fields resolve from models.Goods by case-insensitive name.
var goodsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Goods",
	Fields: graphql.Fields{
		"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description":   &graphql.Field{Type: graphql.String},
		"pictureLink":   &graphql.Field{Type: graphql.String},
		"price":         &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"units":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"inStockAmount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"available":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

// catalogQuery exposes goods(available: Boolean) and good(id: Int!).
func (ac *APIController) catalogQuery() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"goods": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(goodsType)),
				Args: graphql.FieldConfigArgument{
					"available": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					items, err := ac.catalog.All(p.Context)
					if err != nil {
						return nil, err
					}
					want, filter := p.Args["available"].(bool)
					if !filter {
						return items, nil
					}
					out := items[:0]
					for _, g := range items {
						if g.Available == want {
							out = append(out, g)
						}
					}
					return out, nil
				},
			},
			"good": &graphql.Field{
				Type: goodsType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, nil
					}
					g, err := ac.catalog.Find(p.Context, uint(id))
					if errors.Is(err, repositories.ErrNotFound) {
						return nil, nil
					}
					return g, err
				},
			},
		},
	})
}

// GraphQL serves read-only catalog queries.
func (ac *APIController) GraphQL(w http.ResponseWriter, r *http.Request) {
	ac.graphql(w, r)
}

// Healthz reports database reachability.
func (ac *APIController) Healthz(w http.ResponseWriter, r *http.Request) {
	if ac.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ac.ping(ctx); err != nil {
			response.Unavailable(w, "database unavailable")
			return
		}
	}
	response.Success(w, map[string]string{"status": "ok"})
}
