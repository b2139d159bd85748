// Package results models one lottery draw: the raw upstream payload, the
// canonical object key it is archived under, and the normalized row the
// compiler writes to the analytical table.
package results

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// RawPrefix is the namespace all raw draw objects live under.
const RawPrefix = "raw-results/"

// drawDateLayout is the upstream dataApuracao format (day/month/year).
const drawDateLayout = "02/01/2006"

// Shape identifies which of the known payload layouts a draw used. The
// upstream API changed the winning-numbers key at some point; both shapes
// remain in the archive.
type Shape string

const (
	// ShapeCurrent carries winning numbers under listaDezenas.
	ShapeCurrent Shape = "current"
	// ShapeLegacy carries them under dezenasSorteadasOrdemSorteio, in draw
	// order.
	ShapeLegacy Shape = "legacy"
)

// Draw is a parsed draw payload.
type Draw struct {
	Number         int
	Date           time.Time
	WinningNumbers []string
	PrizeTiers     json.RawMessage
	Shape          Shape
}

// Row is one row of the lottery_results table.
type Row struct {
	GameName       string
	DrawNumber     int
	DrawDate       time.Time
	FilePath       string
	WinningNumbers []string
	PrizeTiers     json.RawMessage
}

// BuildKey computes the canonical object key for a draw and validates that
// the result stays inside the raw-results namespace. Malformed game names
// (separators, dot segments) are rejected rather than silently escaping the
// prefix.
func BuildKey(game string, drawNumber int) (string, error) {
	if game == "" {
		return "", fmt.Errorf("game is empty")
	}
	if strings.ContainsAny(game, "/\\") || game == "." || game == ".." {
		return "", fmt.Errorf("invalid game name %q", game)
	}
	if drawNumber <= 0 {
		return "", fmt.Errorf("invalid draw number %d", drawNumber)
	}

	key := RawPrefix + game + "/" + strconv.Itoa(drawNumber) + ".json"
	if cleaned := path.Clean(key); cleaned != key || !strings.HasPrefix(cleaned, RawPrefix) {
		return "", fmt.Errorf("key %q escapes the raw-results namespace", key)
	}
	return key, nil
}

// ParseKey extracts (game, draw number) from a raw object key using the
// positional segments of raw-results/{game}/{draw}.json. Malformed keys are
// permanent input errors; the compiler skips them.
func ParseKey(key string) (game string, drawNumber int, err error) {
	rest, ok := strings.CutPrefix(key, RawPrefix)
	if !ok {
		return "", 0, fmt.Errorf("key %q is outside %s", key, RawPrefix)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, fmt.Errorf("key %q: want %s{game}/{draw}.json", key, RawPrefix)
	}

	numStr, ok := strings.CutSuffix(parts[1], ".json")
	if !ok {
		return "", 0, fmt.Errorf("key %q: missing .json suffix", key)
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("key %q: invalid draw number %q", key, numStr)
	}

	return parts[0], n, nil
}

// ParseDraw parses a raw upstream payload into a Draw. The payload shape is
// selected from a closed set by key presence; unknown shapes and missing
// fields are permanent input errors.
func ParseDraw(raw []byte) (*Draw, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	draw := &Draw{}

	if err := unmarshalField(fields, "numero", &draw.Number); err != nil {
		return nil, err
	}
	if draw.Number <= 0 {
		return nil, fmt.Errorf("field numero: invalid draw number %d", draw.Number)
	}

	var rawDate string
	if err := unmarshalField(fields, "dataApuracao", &rawDate); err != nil {
		return nil, err
	}
	date, err := time.Parse(drawDateLayout, rawDate)
	if err != nil {
		return nil, fmt.Errorf("field dataApuracao: parse %q: %w", rawDate, err)
	}
	draw.Date = date

	switch {
	case fields["listaDezenas"] != nil:
		draw.Shape = ShapeCurrent
		if err := unmarshalField(fields, "listaDezenas", &draw.WinningNumbers); err != nil {
			return nil, err
		}
	case fields["dezenasSorteadasOrdemSorteio"] != nil:
		draw.Shape = ShapeLegacy
		if err := unmarshalField(fields, "dezenasSorteadasOrdemSorteio", &draw.WinningNumbers); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("payload has no known winning-numbers key")
	}

	tiers, ok := fields["listaRateioPremio"]
	if !ok {
		return nil, fmt.Errorf("payload missing listaRateioPremio")
	}
	draw.PrizeTiers = tiers

	return draw, nil
}

func unmarshalField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("payload missing %s", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return nil
}

// Row builds the analytical row for this draw. filePath is the provenance
// pointer back to the archived raw object.
func (d *Draw) Row(game, filePath string) Row {
	return Row{
		GameName:       game,
		DrawNumber:     d.Number,
		DrawDate:       d.Date,
		FilePath:       filePath,
		WinningNumbers: d.WinningNumbers,
		PrizeTiers:     d.PrizeTiers,
	}
}
