// Package intent implements intent classification with slot-filling and the
// per-intent action routing that short-circuits the retrieval pipeline.
package intent

import "sort"

// Intent is one value of the closed classification taxonomy.
type Intent string

// The full taxonomy. general_question and greeting act as catch-alls;
// general_question and pertanyaan_produk fall through to the retrieval path.
const (
	Greeting             Intent = "greeting"
	GeneralQuestion      Intent = "general_question"
	PertanyaanProduk     Intent = "pertanyaan_produk"
	KalkulatorKebutuhan  Intent = "kalkulator_kebutuhan_atap"
	JadwalSurvey         Intent = "jadwal_survey"
	MintaPenawaran       Intent = "minta_penawaran"
	CekHarga             Intent = "cek_harga"
	CaraPemasangan       Intent = "cara_pemasangan"
	KeluhanBocor         Intent = "keluhan_bocor"
	KeluhanProduk        Intent = "keluhan_produk"
	GaransiKlaim         Intent = "garansi_klaim"
	StatusPesanan        Intent = "status_pesanan"
	KontakAdmin          Intent = "kontak_admin"
	LokasiToko           Intent = "lokasi_toko"
	JamOperasional       Intent = "jam_operasional"
	UcapanTerimaKasih    Intent = "ucapan_terima_kasih"
)

// All lists every taxonomy value, in prompt order.
var All = []Intent{
	Greeting, GeneralQuestion, PertanyaanProduk, KalkulatorKebutuhan,
	JadwalSurvey, MintaPenawaran, CekHarga, CaraPemasangan,
	KeluhanBocor, KeluhanProduk, GaransiKlaim, StatusPesanan,
	KontakAdmin, LokasiToko, JamOperasional, UcapanTerimaKasih,
}

// descriptions feed the classification prompt.
var descriptions = map[Intent]string{
	Greeting:            "sapaan pembuka tanpa pertanyaan",
	GeneralQuestion:     "pertanyaan umum yang butuh pencarian dokumen",
	PertanyaanProduk:    "pertanyaan detail produk yang butuh pencarian dokumen",
	KalkulatorKebutuhan: "minta hitung kebutuhan material atap",
	JadwalSurvey:        "minta jadwal survey lokasi",
	MintaPenawaran:      "minta penawaran harga resmi",
	CekHarga:            "tanya kisaran harga produk",
	CaraPemasangan:      "tanya cara atau biaya pemasangan",
	KeluhanBocor:        "laporan atap bocor",
	KeluhanProduk:       "keluhan kualitas produk",
	GaransiKlaim:        "klaim garansi produk",
	StatusPesanan:       "tanya status pesanan",
	KontakAdmin:         "minta dihubungkan dengan admin/sales",
	LokasiToko:          "tanya alamat toko atau gudang",
	JamOperasional:      "tanya jam buka",
	UcapanTerimaKasih:   "ucapan terima kasih atau penutup",
}

// requiredSlots is the static per-intent required-slot table. Intents absent
// from the map require nothing.
var requiredSlots = map[Intent][]string{
	KalkulatorKebutuhan: {"tipe_atap", "dimensi_panjang", "dimensi_lebar", "overstek", "sudut", "jenis_penutup"},
	JadwalSurvey:        {"nama", "telepon", "alamat"},
	MintaPenawaran:      {"nama", "kebutuhan"},
	KeluhanBocor:        {"lokasi_bocor", "deskripsi_masalah"},
	KeluhanProduk:       {"deskripsi_masalah"},
	GaransiKlaim:        {"nomor_invoice"},
	StatusPesanan:       {"nomor_pesanan"},
}

// IsValid reports whether s is a taxonomy value.
func IsValid(s string) bool {
	_, ok := descriptions[Intent(s)]
	return ok
}

// RequiredSlots returns the required slot names for an intent. The returned
// slice is a copy.
func RequiredSlots(i Intent) []string {
	slots := requiredSlots[i]
	out := make([]string, len(slots))
	copy(out, slots)
	return out
}

// SlotMap maps slot names to extracted values (string, number or bool).
type SlotMap map[string]any

// MissingSlots computes required_slots(intent) minus the keys present in the
// map, sorted for stable output. A pure key-set difference: a key present
// with an empty value still counts as filled.
func (s SlotMap) MissingSlots(i Intent) []string {
	missing := make([]string, 0)
	for _, name := range requiredSlots[i] {
		if _, ok := s[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
