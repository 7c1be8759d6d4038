package bwt

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"

	_ "embed"

	"golang.org/x/time/rate"
)

//go:embed testdata/login.html
var loginPageHtml string

//go:embed testdata/dashboard.html
var dashboardPageHtml string

//go:embed testdata/device.html
var devicePageHtml string

//go:embed testdata/ajax_chart.json
var ajaxChartJson string

const (
	testUsername = "user@example.com"
	testPassword = "correct horse"
	sessionName  = "PHPSESSID"
)

// fakePortal imitates the routes of the vendor portal the client relies on.
// Status queues are consumed one per request, an empty queue means 200.
type fakePortal struct {
	mu sync.Mutex

	sessions int

	loginGets    int
	loginPosts   int
	dashboardHit int
	deviceHit    int
	ajaxHit      int

	dashboardStatuses []int
	deviceStatuses    []int
	ajaxStatuses      []int

	// loginHandler replaces the default login POST behavior when set.
	loginHandler http.HandlerFunc
	landingBody  string

	dashboardBody string
	deviceBody    string
	ajaxBody      string

	lastAjaxHeaders http.Header
	lastAjaxQuery   string
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		landingBody:   "<html><body>Bienvenue</body></html>",
		dashboardBody: dashboardPageHtml,
		deviceBody:    devicePageHtml,
		ajaxBody:      ajaxChartJson,
	}
}

func (p *fakePortal) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", p.handleLogin)
	mux.HandleFunc("/dashboard/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, p.landingBody)
	})
	mux.HandleFunc("/dashboard", p.handleDashboard)
	mux.HandleFunc("/device", p.handleDevice)
	mux.HandleFunc("/device/ajaxChart", p.handleAjax)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func nextStatus(queue *[]int) int {
	if len(*queue) == 0 {
		return http.StatusOK
	}
	status := (*queue)[0]
	*queue = (*queue)[1:]
	return status
}

func (p *fakePortal) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionName)
	if err != nil {
		return false
	}
	return cookie.Value == fmt.Sprintf("session-%d", p.sessions)
}

func (p *fakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Method == http.MethodGet {
		p.loginGets++
		fmt.Fprint(w, loginPageHtml)
		return
	}

	p.loginPosts++
	if p.loginHandler != nil {
		p.loginHandler(w, r)
		return
	}

	err := r.ParseForm()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("_username") != testUsername || r.PostForm.Get("_password") != testPassword {
		fmt.Fprint(w, `<div class="alert">Identifiants invalides.</div>`+loginPageHtml)
		return
	}

	p.sessions++
	http.SetCookie(w, &http.Cookie{
		Name:  sessionName,
		Value: fmt.Sprintf("session-%d", p.sessions),
		Path:  "/",
	})
	http.Redirect(w, r, "/dashboard/home", http.StatusFound)
}

func (p *fakePortal) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dashboardHit++
	if !p.validSession(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	status := nextStatus(&p.dashboardStatuses)
	w.WriteHeader(status)
	if status == http.StatusOK {
		fmt.Fprint(w, p.dashboardBody)
	}
}

func (p *fakePortal) handleDevice(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deviceHit++
	if !p.validSession(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	status := nextStatus(&p.deviceStatuses)
	w.WriteHeader(status)
	if status == http.StatusOK {
		fmt.Fprint(w, p.deviceBody)
	}
}

func (p *fakePortal) handleAjax(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ajaxHit++
	p.lastAjaxHeaders = r.Header.Clone()
	p.lastAjaxQuery = r.URL.Query().Get("receiptLineKey")
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !p.validSession(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	status := nextStatus(&p.ajaxStatuses)
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, p.ajaxBody)
}

func newTestClient(t *testing.T, server *httptest.Server, today time.Time) (*Client, *telemetry.TestAPI) {
	tel := telemetry.NewTestAPI()
	client, err := NewClient(ClientOptions{
		BaseUrl:                 server.URL,
		Timeout:                 5 * time.Second,
		RateLimit:               rate.Inf,
		DisableCloudflareBypass: true,
		Telemetry:               tel,
		Clock:                   chrono.FixedImpl{At: today},
	})
	if err != nil {
		t.Fatal(err)
	}
	return client, tel
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 30, 0, 0, time.UTC)
}
