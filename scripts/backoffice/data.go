package main

import (
	"math/rand"
	"strings"
	"time"

	"syreclabs.com/go/faker"

	"github.com/alan14500171/stock/models"
)

type StockRecord struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Market string  `json:"market"`
	Price  float64 `json:"price"`
}

type TransactionRecord struct {
	ID        int64   `json:"id"`
	StockCode string  `json:"stock_code"`
	Type      string  `json:"type"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Date      string  `json:"date"`
}

//nolint:gochecknoglobals
var markets = []string{"HK", "US", "SH", "SZ"}

func sampleStocks(n int) []StockRecord {
	stocks := make([]StockRecord, 0, n)
	for i := 0; i < n; i++ {
		stocks = append(stocks, StockRecord{
			Code:   faker.Number().Number(5),
			Name:   faker.Company().Name(),
			Market: markets[rand.Intn(len(markets))],
			Price:  float64(rand.Intn(100000)) / 100,
		})
	}
	return stocks
}

func sampleTransactions(n int) []TransactionRecord {
	kinds := []string{"buy", "sell"}

	txs := make([]TransactionRecord, 0, n)
	for i := 0; i < n; i++ {
		day := time.Now().AddDate(0, 0, -rand.Intn(365))
		txs = append(txs, TransactionRecord{
			ID:        int64(i) + 1,
			StockCode: faker.Number().Number(5),
			Type:      kinds[rand.Intn(len(kinds))],
			Quantity:  int64(rand.Intn(99)+1) * 100,
			Price:     float64(rand.Intn(100000)) / 100,
			Date:      day.Format("2006-01-02"),
		})
	}
	return txs
}

func userProfile(user UserCfg, id int64) models.User {
	return models.User{
		ID:          id,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IsActive:    true,
	}
}

// grantPayload serializes grants in either wire generation: bare identifiers
// or {code}/{name} records.
func grantPayload(idents []string, field string, legacy bool) []interface{} {
	payload := make([]interface{}, 0, len(idents))
	for _, ident := range idents {
		if legacy {
			payload = append(payload, ident)
			continue
		}
		payload = append(payload, map[string]string{field: ident})
	}
	return payload
}

// menuPayload exposes the view permissions as menu entries.
func menuPayload(permissions []string) []models.Menu {
	menus := make([]models.Menu, 0, len(permissions))
	for i, code := range permissions {
		if !strings.HasSuffix(code, ":view") {
			continue
		}
		menus = append(menus, models.Menu{
			ID:   int64(i) + 1,
			Name: strings.SplitN(code, ":", 2)[0],
			Code: code,
		})
	}
	return menus
}
