package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/mmynk/guestpass/internal/models"
)

// Fields is the header row of the guest table, in column order.
var Fields = []string{"id", "name", "phone", "address", "profession", "notes", "added", "created", "plus_one"}

// Encode writes guests as CSV with a header row.
func Encode(w io.Writer, guests []models.Guest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Fields); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range guests {
		g := &guests[i]
		row := []string{
			g.ID,
			g.Name,
			g.Phone,
			g.Address,
			g.Profession,
			g.Notes,
			models.FormatFlag(g.CheckedIn),
			g.CreatedString(),
			models.FormatFlag(g.PlusOne),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write guest %s: %w", g.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a CSV guest table. Columns are matched by header name, so
// tables written before a column existed (e.g. plus_one) still load, with
// the missing value treated as empty.
func Decode(r io.Reader) ([]models.Guest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []models.Guest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	guests := []models.Guest{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		get := func(field string) string {
			if i, ok := index[field]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		g := models.Guest{
			ID:         get("id"),
			Name:       get("name"),
			Phone:      get("phone"),
			Address:    get("address"),
			Profession: get("profession"),
			Notes:      get("notes"),
			CheckedIn:  models.ParseFlag(get("added")),
			PlusOne:    models.ParseFlag(get("plus_one")),
		}
		if created := get("created"); created != "" {
			g.Created, err = time.ParseInLocation(models.CreatedLayout, created, time.Local)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid created %q: %w", line, created, err)
			}
		}
		guests = append(guests, g)
	}
	return guests, nil
}
