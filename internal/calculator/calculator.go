// Package calculator computes deterministic roof-material estimates. It is
// pure arithmetic: no I/O, no randomness, same input always yields the same
// breakdown.
package calculator

import (
	"fmt"
	"math"
	"strings"
)

// Input describes one roof to estimate. Dimensions are in meters, Sudut is
// the pitch in degrees.
type Input struct {
	ModelAtap    string  `json:"model_atap"`    // pelana, limas, miring
	TipeBangunan string  `json:"tipe_bangunan"` // rumah, gudang, kanopi
	Panjang      float64 `json:"panjang"`
	Lebar        float64 `json:"lebar"`
	Overstek     float64 `json:"overstek"`
	Sudut        float64 `json:"sudut"`
	JenisPenutup string  `json:"jenis_penutup"` // spandek, metal_pasir, upvc, genteng_metal
}

// LineItem is one material line in the breakdown.
type LineItem struct {
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Estimate is the full material and cost breakdown.
type Estimate struct {
	RoofArea   float64    `json:"roof_area_m2"`
	Items      []LineItem `json:"items"`
	GrandTotal float64    `json:"grand_total"`
}

// Sheet coverage and prices per covering type, in IDR. Prices are catalog
// constants; updating them is a code change, not configuration.
var coverings = map[string]struct {
	name          string
	coverPerSheet float64 // effective m2 per sheet
	pricePerSheet float64
}{
	"spandek":       {"Atap Spandek 0.35mm", 4.2, 98000},
	"metal_pasir":   {"Genteng Metal Pasir", 0.72, 36500},
	"upvc":          {"Atap UPVC Double Layer", 3.6, 185000},
	"genteng_metal": {"Genteng Metal Polos", 0.72, 28000},
}

const (
	trussPricePerM   = 78000 // kanal C75 per meter
	battenPricePerM  = 21000 // reng per meter
	screwPricePerBox = 65000 // box of 250
	screwsPerM2      = 12.0
	battenMPerM2     = 3.0
)

// Cutting-waste allowance on the covering by roof model. Hip roofs lose more
// to diagonal cuts along the jurai; a mono-pitch plane loses almost nothing.
// Unknown or absent models estimate as a gable roof, the common case.
var wasteByModel = map[string]float64{
	"pelana": 1.05,
	"limas":  1.10,
	"miring": 1.02,
}

const defaultWaste = 1.05

// Truss meters per m2 of roof plane by building type. Warehouse spans need
// denser framing; a kanopi gets a lighter hollow frame.
var trussMPerM2ByBuilding = map[string]float64{
	"rumah":  4.0,
	"gudang": 4.5,
	"kanopi": 3.0,
}

const defaultTrussMPerM2 = 4.0

// Calculate produces the estimate. It validates dimensions and covering type.
func Calculate(in Input) (Estimate, error) {
	if in.Panjang <= 0 || in.Lebar <= 0 {
		return Estimate{}, fmt.Errorf("panjang and lebar must be positive, got %.2f x %.2f", in.Panjang, in.Lebar)
	}
	if in.Sudut < 0 || in.Sudut >= 60 {
		return Estimate{}, fmt.Errorf("sudut %.1f out of supported range [0, 60)", in.Sudut)
	}
	if in.Overstek < 0 {
		return Estimate{}, fmt.Errorf("overstek must not be negative")
	}

	covering, ok := coverings[normalizeKey(in.JenisPenutup)]
	if !ok {
		return Estimate{}, fmt.Errorf("unknown jenis penutup: %s", in.JenisPenutup)
	}

	// Plan area including eaves overhang on all sides, projected onto the
	// pitched plane.
	planLength := in.Panjang + 2*in.Overstek
	planWidth := in.Lebar + 2*in.Overstek
	slopeFactor := 1 / math.Cos(in.Sudut*math.Pi/180)
	area := planLength * planWidth * slopeFactor
	area = math.Round(area*100) / 100

	waste, ok := wasteByModel[normalizeKey(in.ModelAtap)]
	if !ok {
		waste = defaultWaste
	}
	trussDensity, ok := trussMPerM2ByBuilding[normalizeKey(in.TipeBangunan)]
	if !ok {
		trussDensity = defaultTrussMPerM2
	}

	sheets := math.Ceil(area * waste / covering.coverPerSheet)
	trussM := math.Ceil(area * trussDensity)
	battenM := math.Ceil(area * battenMPerM2)
	screwBoxes := math.Ceil(area * screwsPerM2 / 250)

	items := []LineItem{
		line(covering.name, "lembar", sheets, covering.pricePerSheet),
		line("Rangka Kanal C75", "m", trussM, trussPricePerM),
		line("Reng Baja Ringan", "m", battenM, battenPricePerM),
		line("Sekrup Roofing (isi 250)", "box", screwBoxes, screwPricePerBox),
	}

	var total float64
	for _, it := range items {
		total += it.Subtotal
	}

	return Estimate{RoofArea: area, Items: items, GrandTotal: total}, nil
}

// Format renders the estimate as the user-facing block appended to chat
// answers.
func (e Estimate) Format() string {
	var b strings.Builder
	b.WriteString("Estimasi Kebutuhan Material Atap\n")
	b.WriteString(fmt.Sprintf("Luas bidang atap: %.2f m²\n\n", e.RoofArea))
	for _, it := range e.Items {
		b.WriteString(fmt.Sprintf("- %s: %.0f %s × Rp%s = Rp%s\n",
			it.Name, it.Quantity, it.Unit, formatRupiah(it.UnitPrice), formatRupiah(it.Subtotal)))
	}
	b.WriteString(fmt.Sprintf("\nTotal estimasi: Rp%s\n", formatRupiah(e.GrandTotal)))
	b.WriteString("Harga di atas adalah perkiraan; hubungi tim kami untuk penawaran resmi.")
	return b.String()
}

func line(name, unit string, qty, price float64) LineItem {
	return LineItem{Name: name, Unit: unit, Quantity: qty, UnitPrice: price, Subtotal: qty * price}
}

func normalizeKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// formatRupiah inserts thousand separators the Indonesian way.
func formatRupiah(v float64) string {
	n := int64(math.Round(v))
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
