package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/calculator"
	"github.com/atapcerdas/atapbot/internal/llm"
	"github.com/atapcerdas/atapbot/internal/schema"
)

// Response is a fully formed handler result. Handled=false is the explicit
// empty sentinel telling the orchestrator to fall through to the QA matcher
// and retrieval instead of short-circuiting.
type Response struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Data    any    `json:"data,omitempty"`
	Handled bool   `json:"handled"`
}

// Action tags attached to handler responses.
const (
	ActionReply          = "reply"
	ActionCalculator     = "calculator"
	ActionSurveyTicket   = "survey_ticket"
	ActionComplaint      = "complaint_ticket"
	ActionContactHandoff = "contact_handoff"
	ActionNone           = "none"
)

// ContactsSource reads current business contact settings. Implementations
// must return usable defaults alongside any lookup error.
type ContactsSource interface {
	GetContactSettings(ctx context.Context) (schema.ContactSettings, error)
}

// Router dispatches completed intents to their business actions. Each handler
// is independent and produces a user-facing message; handler failures degrade
// to apologetic messages, never errors.
type Router struct {
	provider    llm.Provider
	contacts    ContactsSource
	callTimeout time.Duration
	logger      *zap.Logger
	handlers    map[Intent]func(ctx context.Context, slots SlotMap, raw string) Response
}

// NewRouter builds the dispatch table.
func NewRouter(provider llm.Provider, contacts ContactsSource, logger *zap.Logger) *Router {
	r := &Router{
		provider:    provider,
		contacts:    contacts,
		callTimeout: 15 * time.Second,
		logger:      logger,
	}
	r.handlers = map[Intent]func(ctx context.Context, slots SlotMap, raw string) Response{
		Greeting:            r.handleGreeting,
		UcapanTerimaKasih:   r.handleThanks,
		KalkulatorKebutuhan: r.handleCalculator,
		JadwalSurvey:        r.handleSurvey,
		MintaPenawaran:      r.handleQuotation,
		CekHarga:            r.handlePriceCheck,
		CaraPemasangan:      r.handleInstallation,
		KeluhanBocor:        r.handleComplaint,
		KeluhanProduk:       r.handleComplaint,
		GaransiKlaim:        r.handleWarranty,
		StatusPesanan:       r.handleOrderStatus,
		KontakAdmin:         r.handleContact,
		LokasiToko:          r.handleContact,
		JamOperasional:      r.handleContact,
	}
	return r
}

// Handle executes the intent's action. general_question and
// pertanyaan_produk return the empty sentinel by contract.
func (r *Router) Handle(ctx context.Context, intentName Intent, slots SlotMap, rawMessage string) Response {
	handler, ok := r.handlers[intentName]
	if !ok {
		return Response{Action: ActionNone, Handled: false}
	}
	return handler(ctx, slots, rawMessage)
}

func (r *Router) handleGreeting(_ context.Context, _ SlotMap, _ string) Response {
	return Response{
		Message: "Halo! Selamat datang di Atap Cerdas. Ada yang bisa kami bantu seputar kebutuhan atap Anda? " +
			"Anda bisa tanya produk, hitung kebutuhan material, atau jadwalkan survey lokasi.",
		Action:  ActionReply,
		Handled: true,
	}
}

func (r *Router) handleThanks(_ context.Context, _ SlotMap, _ string) Response {
	return Response{
		Message: "Sama-sama! Kalau ada pertanyaan lain seputar atap, jangan ragu chat kami lagi ya.",
		Action:  ActionReply,
		Handled: true,
	}
}

// handleCalculator composes a deterministic materials estimate. Calculator
// failure degrades to an apology, not an error.
func (r *Router) handleCalculator(_ context.Context, slots SlotMap, _ string) Response {
	in := calculator.Input{
		ModelAtap:    slotString(slots, "tipe_atap"),
		Panjang:      slotFloat(slots, "dimensi_panjang"),
		Lebar:        slotFloat(slots, "dimensi_lebar"),
		Overstek:     slotFloat(slots, "overstek"),
		Sudut:        slotFloat(slots, "sudut"),
		JenisPenutup: slotString(slots, "jenis_penutup"),
	}
	estimate, err := calculator.Calculate(in)
	if err != nil {
		r.logger.Warn("calculator failed", zap.Error(err))
		return Response{
			Message: "Mohon maaf, kami belum bisa menghitung estimasi dengan data tersebut. " +
				"Boleh dicek kembali ukuran dan jenis atapnya? Atau hubungi tim kami untuk dibantu langsung.",
			Action:  ActionReply,
			Handled: true,
		}
	}
	return Response{
		Message: estimate.Format(),
		Action:  ActionCalculator,
		Data:    estimate,
		Handled: true,
	}
}

func (r *Router) handleSurvey(_ context.Context, slots SlotMap, _ string) Response {
	return Response{
		Message: fmt.Sprintf(
			"Terima kasih, %s! Permintaan survey untuk alamat %s sudah kami catat. "+
				"Tim kami akan menghubungi nomor %s untuk konfirmasi jadwal paling lambat 1x24 jam kerja.",
			slotString(slots, "nama"), slotString(slots, "alamat"), slotString(slots, "telepon")),
		Action:  ActionSurveyTicket,
		Data:    slots,
		Handled: true,
	}
}

func (r *Router) handleQuotation(ctx context.Context, slots SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: fmt.Sprintf(
			"Baik %s, permintaan penawaran untuk \"%s\" sudah kami terima. "+
				"Tim sales akan mengirimkan penawaran resmi. Untuk mempercepat, Anda juga bisa langsung WhatsApp kami di %s.",
			slotString(slots, "nama"), slotString(slots, "kebutuhan"), contacts.WhatsApp),
		Action:  ActionContactHandoff,
		Data:    slots,
		Handled: true,
	}
}

func (r *Router) handlePriceCheck(ctx context.Context, _ SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: "Kisaran harga kami: spandek mulai Rp98.000/lembar, genteng metal pasir mulai Rp36.500/lembar, " +
			"UPVC mulai Rp185.000/lembar, rangka kanal C75 Rp78.000/meter. " +
			"Harga bisa berbeda per wilayah dan volume; untuk harga pasti silakan WhatsApp " + contacts.WhatsApp + ".",
		Action:  ActionReply,
		Handled: true,
	}
}

func (r *Router) handleInstallation(ctx context.Context, _ SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: "Kami menyediakan jasa pemasangan oleh aplikator bersertifikat dengan biaya mulai Rp45.000/m² " +
			"tergantung model atap dan akses lokasi. Tim kami bisa survey dulu supaya hitungannya akurat — " +
			"mau kami jadwalkan? Atau hubungi " + contacts.WhatsApp + " untuk konsultasi langsung.",
		Action:  ActionReply,
		Handled: true,
	}
}

// handleComplaint opens a ticket and makes one bounded generative call for an
// empathetic contextual paragraph, with a hardcoded message when that fails.
func (r *Router) handleComplaint(ctx context.Context, slots SlotMap, rawMessage string) Response {
	const fallback = "Mohon maaf atas ketidaknyamanannya. Keluhan Anda sudah kami catat dan " +
		"tim teknis kami akan menindaklanjuti secepatnya."

	prompt := "Kamu adalah customer service toko material atap. Pelanggan menyampaikan keluhan berikut:\n\"" +
		rawMessage + "\"\n" +
		"Tulis satu paragraf singkat (2-3 kalimat) dalam bahasa Indonesia yang berempati, " +
		"menyampaikan bahwa keluhan sudah dicatat sebagai tiket, dan tim teknis akan menindaklanjuti. " +
		"Jangan menjanjikan kompensasi apa pun."

	message := fallback
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	generated, err := r.provider.Complete(callCtx, prompt)
	cancel()
	if err != nil {
		r.logger.Warn("complaint paragraph generation failed, using fallback", zap.Error(err))
	} else if strings.TrimSpace(generated) != "" {
		message = strings.TrimSpace(generated)
	}

	return Response{
		Message: message,
		Action:  ActionComplaint,
		Data:    slots,
		Handled: true,
	}
}

func (r *Router) handleWarranty(ctx context.Context, slots SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: fmt.Sprintf(
			"Klaim garansi untuk invoice %s sudah kami catat. Mohon siapkan foto produk dan bukti pembelian, "+
				"lalu kirimkan ke email %s atau WhatsApp %s agar proses verifikasi lebih cepat.",
			slotString(slots, "nomor_invoice"), contacts.Email, contacts.WhatsApp),
		Action:  ActionComplaint,
		Data:    slots,
		Handled: true,
	}
}

func (r *Router) handleOrderStatus(ctx context.Context, slots SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: fmt.Sprintf(
			"Untuk pengecekan status pesanan %s, silakan hubungi admin kami di WhatsApp %s dengan menyebutkan "+
				"nomor pesanan tersebut. Admin kami siap membantu pada jam operasional %s.",
			slotString(slots, "nomor_pesanan"), contacts.WhatsApp, contacts.OperatingHours),
		Action:  ActionContactHandoff,
		Handled: true,
	}
}

// handleContact renders current contact settings; the settings source
// guarantees non-empty defaults even when the lookup fails.
func (r *Router) handleContact(ctx context.Context, _ SlotMap, _ string) Response {
	contacts := r.readContacts(ctx)
	return Response{
		Message: fmt.Sprintf(
			"Anda bisa menghubungi kami melalui:\n- WhatsApp: %s\n- Email: %s\n- Alamat: %s\n- Jam operasional: %s",
			contacts.WhatsApp, contacts.Email, contacts.Address, contacts.OperatingHours),
		Action:  ActionContactHandoff,
		Handled: true,
	}
}

func (r *Router) readContacts(ctx context.Context) schema.ContactSettings {
	contacts, err := r.contacts.GetContactSettings(ctx)
	if err != nil {
		r.logger.Warn("contact settings lookup failed, using defaults", zap.Error(err))
	}
	return contacts
}

func slotString(slots SlotMap, name string) string {
	switch v := slots[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func slotFloat(slots SlotMap, name string) float64 {
	switch v := slots[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
