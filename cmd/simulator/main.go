package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/broker/mqtt"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Notifier publishes live notifications.
type Notifier interface {
	Publish(n alerts.LiveNotification) error
}

// Client talks to the fleet API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *Client) do(method, path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("encode %s: %w", path, err)
		}
	}
	req, err := http.NewRequest(method, c.BaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(username, password string) error {
	var resp models.LoginResponse
	status, err := c.do(http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed with status: %d", status)
	}
	c.Token = resp.Token
	return nil
}

var (
	makes     = []string{"Ford", "Chevrolet", "Toyota", "Volkswagen", "Fiat"}
	modelsFor = map[string][]string{
		"Ford":       {"Ranger", "Transit"},
		"Chevrolet":  {"S10", "Onix"},
		"Toyota":     {"Hilux", "Corolla"},
		"Volkswagen": {"Amarok", "Saveiro"},
		"Fiat":       {"Strada", "Toro"},
	}
)

// defaultPrograms is the preventive plan every simulated vehicle gets.
func defaultPrograms() []models.ProgramInput {
	return []models.ProgramInput{
		{MaintenanceType: "oleo", MaintenanceName: "Troca de oleo", IntervalDistance: 10000, IsActive: true},
		{MaintenanceType: "filtro_oleo", MaintenanceName: "Filtro de oleo", IntervalDistance: 10000, IsActive: true},
		{MaintenanceType: "filtro_ar", MaintenanceName: "Filtro de ar", IntervalDistance: 20000, IsActive: true},
		{MaintenanceType: "pastilhas_freio", MaintenanceName: "Pastilhas de freio", IntervalDistance: 30000, IsActive: true},
		{MaintenanceType: "pneus", MaintenanceName: "Rodizio de pneus", IntervalDistance: 15000, IsActive: true},
	}
}

func randomPlate(r *rand.Rand) string {
	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = byte('A' + r.Intn(26))
	}
	return fmt.Sprintf("%s-%04d", letters, r.Intn(10000))
}

func newVehicle(r *rand.Rand) models.Vehicle {
	mk := makes[r.Intn(len(makes))]
	return models.Vehicle{
		Plate:           randomPlate(r),
		Make:            mk,
		Model:           modelsFor[mk][r.Intn(len(modelsFor[mk]))],
		Year:            2018 + r.Intn(7),
		CurrentDistance: float64(r.Intn(80000)),
	}
}

// createVehicle registers a vehicle and installs its maintenance plan.
func createVehicle(c *Client, v models.Vehicle) (string, error) {
	var created models.Vehicle
	status, err := c.do(http.MethodPost, "/vehicles", v, &created)
	if err != nil {
		return "", fmt.Errorf("failed to create vehicle: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("vehicle creation failed with status: %d", status)
	}
	id := created.ID.Hex()

	status, err = c.do(http.MethodPut, "/vehicles/"+id+"/programs",
		models.ReplaceProgramsRequest{Version: 0, Programs: defaultPrograms()}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to install programs: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("program install failed with status: %d", status)
	}

	log.WithFields(log.Fields{
		"vehicle_id": id,
		"plate":      v.Plate,
		"make":       v.Make,
		"model":      v.Model,
	}).Info("Created vehicle")
	return id, nil
}

// VehicleState is the simulated driving state of one vehicle.
type VehicleState struct {
	VehicleID string
	Plate     string
	Distance  float64
	SpeedKmh  float64
	FuelPct   float64
}

// step advances the vehicle by one tick and reports whether it refuelled.
func step(s *VehicleState, r *rand.Rand, tick time.Duration) bool {
	s.SpeedKmh += (r.Float64()*2 - 1) * 1.5
	if s.SpeedKmh < 15 {
		s.SpeedKmh = 15
	}
	if s.SpeedKmh > 110 {
		s.SpeedKmh = 110
	}
	km := s.SpeedKmh * tick.Hours()
	s.Distance += km
	s.FuelPct -= km * 0.4
	if s.FuelPct < 5 {
		s.FuelPct = 100
		return true
	}
	return false
}

func sendOdometer(c *Client, s *VehicleState) error {
	status, err := c.do(http.MethodPost, "/vehicles/"+s.VehicleID+"/odometer", models.OdometerReading{Distance: s.Distance}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("odometer update failed with status: %d", status)
	}
	return nil
}

func refuelNotification(s *VehicleState) alerts.LiveNotification {
	return alerts.LiveNotification{
		ID:          uuid.NewString(),
		Severity:    models.SeverityInfo,
		Category:    models.CategoryMaintenance,
		Title:       "Vehicle refuelled",
		Description: fmt.Sprintf("%s refuelled at %.0f km", s.Plate, s.Distance),
		VehicleID:   s.VehicleID,
	}
}

func simulateVehicle(ctx context.Context, c *Client, n Notifier, s *VehicleState, interval time.Duration, seed int64) {
	r := rand.New(rand.NewSource(seed))
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		refuelled := step(s, r, interval)
		if err := sendOdometer(c, s); err != nil {
			log.WithError(err).WithField("vehicle_id", s.VehicleID).Error("Failed to send odometer")
			continue
		}
		log.WithFields(log.Fields{"vehicle_id": s.VehicleID, "distance": s.Distance}).Debug("Sent odometer")
		if refuelled && n != nil {
			if err := n.Publish(refuelNotification(s)); err != nil {
				log.WithError(err).Warn("Failed to publish notification")
			}
		}
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return fallback
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	client := &Client{BaseURL: apiURL, Token: os.Getenv("SIM_AUTH_TOKEN"), HTTP: &http.Client{Timeout: 10 * time.Second}}
	if user := os.Getenv("SIM_USERNAME"); user != "" && client.Token == "" {
		if err := client.Login(user, os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Failed to log in")
		}
	}

	fleetSize := envInt("FLEET_SIZE", 10)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second

	var notifier Notifier
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		mc, err := mqtt.Connect(mqtt.Options{Broker: broker, ClientID: "fleet-simulator-" + uuid.NewString()[:8]})
		if err != nil {
			log.WithError(err).Warn("MQTT unavailable, live notifications disabled")
		} else {
			defer mc.Disconnect(250)
			notifier = mqtt.NewPublisher(mc)
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
		"mqtt":       notifier != nil,
	}).Info("Starting fleet simulation")

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	states := make([]*VehicleState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		v := newVehicle(r)
		id, err := createVehicle(client, v)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		states = append(states, &VehicleState{
			VehicleID: id,
			Plate:     v.Plate,
			Distance:  v.CurrentDistance,
			SpeedKmh:  30 + r.Float64()*30,
			FuelPct:   50 + r.Float64()*50,
		})
	}

	log.WithField("created_vehicles", len(states)).Info("Vehicle creation completed")
	if len(states) == 0 {
		log.Error("No vehicles created. Ensure the credentials are valid and the API is reachable. Exiting.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i, s := range states {
		wg.Add(1)
		go func(s *VehicleState, seed int64) {
			defer wg.Done()
			simulateVehicle(ctx, client, notifier, s, interval, seed)
		}(s, r.Int63()+int64(i))
	}
	log.Info("Odometer simulation started")
	wg.Wait()
}
