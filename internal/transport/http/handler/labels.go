package handler

import (
	"github.com/gin-gonic/gin"

	"fruitfresh/internal/fruit"
	"fruitfresh/internal/transport/http/response"
)

type labelView struct {
	Index     int         `json:"index"`
	Label     fruit.Label `json:"label"`
	Fruit     string      `json:"fruit"`
	Freshness string      `json:"freshness"`
	Guidance  string      `json:"guidance"`
}

// Labels lists the catalog in model output order.
func Labels(c *gin.Context) {
	catalog := fruit.Catalog()
	views := make([]labelView, 0, len(catalog))
	for _, l := range catalog {
		views = append(views, labelView{
			Index:     l.Index(),
			Label:     l,
			Fruit:     l.LookupName(),
			Freshness: l.Freshness(),
			Guidance:  l.Guidance(),
		})
	}
	response.OK(c, gin.H{"labels": views})
}
