package watcher

import (
	"time"

	"github.com/tidwall/gjson"

	"example.com/portaria/internal/models"
)

// LastIdentity picks the newest record of an access end-store document: the
// largest ID, else the latest parseable DATA_HORA, else the array tail. It
// returns "" when that record carries no identity.
func LastIdentity(data []byte) string {
	rows := gjson.GetBytes(data, "registros").Array()
	if len(rows) == 0 {
		return ""
	}

	row, ok := byLargestID(rows)
	if !ok {
		row, ok = byLatestDataHora(rows)
	}
	if !ok {
		row = rows[len(rows)-1]
	}

	identity := models.IdentityKey(
		row.Get("NOME").String(),
		row.Get("SOBRENOME").String(),
		row.Get("BLOCO").String(),
		row.Get("APARTAMENTO").String(),
	)
	if identity == "|||" {
		return ""
	}
	return identity
}

func byLargestID(rows []gjson.Result) (gjson.Result, bool) {
	var (
		best  gjson.Result
		found bool
	)
	for _, r := range rows {
		id := r.Get("ID")
		if id.Type != gjson.Number {
			continue
		}
		if !found || id.Int() > best.Get("ID").Int() {
			best, found = r, true
		}
	}
	return best, found
}

func byLatestDataHora(rows []gjson.Result) (gjson.Result, bool) {
	var (
		best   gjson.Result
		bestAt time.Time
		found  bool
	)
	for _, r := range rows {
		at, ok := models.ParseDataHora(r.Get("DATA_HORA").String())
		if !ok {
			continue
		}
		if !found || !at.Before(bestAt) {
			best, bestAt, found = r, at, true
		}
	}
	return best, found
}
