package main

import (
	"encoding/json"
	"flag"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/notabene00/yandex-weather/internal/models"
	"github.com/notabene00/yandex-weather/internal/weather"
	"github.com/notabene00/yandex-weather/internal/yandex"

	"github.com/sirupsen/logrus"
)

const progName = "fakeyandex"

var partNames = []string{"night", "morning", "day", "evening"}

type informers struct {
	Now      int64           `json:"now"`
	NowDt    string          `json:"now_dt"`
	Fact     models.Fact     `json:"fact"`
	Forecast models.Forecast `json:"forecast"`
	Info     map[string]any  `json:"info"`
}

type fakeServer struct {
	apiKey     string
	failStatus int
	delay      time.Duration
	logger     *logrus.Logger
}

func main() {
	var addr string
	var s fakeServer

	flag.StringVar(&addr, "addr", "127.0.0.1:8081", "listen address")
	flag.StringVar(&s.apiKey, "api-key", "", "accepted API key (any when empty)")
	flag.IntVar(&s.failStatus, "fail-status", 0, "answer every request with this HTTP status and an error payload")
	flag.DurationVar(&s.delay, "delay", 0, "delay before answering, to exercise client timeouts")
	flag.Parse()

	s.logger = logrus.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/informers", s.handleInformers)

	s.logger.Infof("%s: serving informers on http://%s/v2/informers", progName, addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		s.logger.Fatalf("%s: %v", progName, err)
	}
}

func (s *fakeServer) handleInformers(w http.ResponseWriter, r *http.Request) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	w.Header().Set("Content-Type", "application/json")

	if s.apiKey != "" && r.Header.Get(yandex.APIKeyHeader) != s.apiKey {
		s.writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if s.failStatus != 0 {
		s.writeError(w, s.failStatus, http.StatusText(s.failStatus))
		return
	}

	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, _ := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)

	payload := generate(time.Now(), lat, lon)
	s.logger.Debugf("Serving %s at %v,%v", payload.Fact.Condition, lat, lon)
	json.NewEncoder(w).Encode(payload)
}

func (s *fakeServer) writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message})
}

// generate builds a payload that drifts with the time of day so successive
// fetches differ.
func generate(now time.Time, lat, lon float64) informers {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	temp := math.Round(10 + 8*math.Sin((hour-9)/24*2*math.Pi))
	codes := weather.Codes()
	code := codes[now.Minute()%len(codes)]

	fact := models.Fact{
		Temp:       temp,
		FeelsLike:  temp - 3,
		Icon:       "ovc",
		Condition:  code,
		WindSpeed:  math.Round(20+15*math.Cos(hour)) / 10,
		WindGust:   math.Round(40+15*math.Cos(hour)) / 10,
		WindDir:    "sw",
		PressureMM: 745,
		PressurePA: 993,
		Humidity:   70 + now.Minute()%20,
		Daytime:    "d",
		Season:     "autumn",
		ObsTime:    now.Truncate(10 * time.Minute).Unix(),
	}

	parts := make([]models.ForecastPart, 0, 2)
	for i := 1; i <= 2; i++ {
		low, high := temp-float64(i), temp+float64(i)
		speed := fact.WindSpeed + float64(i)/2
		prob := 10 * i
		parts = append(parts, models.ForecastPart{
			PartName:   partNames[(now.Hour()/6+i)%len(partNames)],
			TempMin:    &low,
			TempMax:    &high,
			Icon:       fact.Icon,
			Condition:  codes[(now.Minute()+i)%len(codes)],
			WindSpeed:  &speed,
			WindDir:    fact.WindDir,
			PressureMM: &fact.PressureMM,
			PressurePA: &fact.PressurePA,
			Humidity:   &fact.Humidity,
			PrecProb:   &prob,
		})
	}

	return informers{
		Now:   now.Unix(),
		NowDt: now.UTC().Format(time.RFC3339),
		Fact:  fact,
		Forecast: models.Forecast{
			Date:   now.Format("2006-01-02"),
			DateTS: now.Truncate(24 * time.Hour).Unix(),
			Parts:  parts,
		},
		Info: map[string]any{"lat": lat, "lon": lon},
	}
}
