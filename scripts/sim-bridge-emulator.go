package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/simbridge"
)

// EmulatorConfig параметры эмулятора моста симулятора
type EmulatorConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	WeightRate  time.Duration
	AckDelay    time.Duration
	WeightLbs   float64
	MetarDelay  time.Duration
}

// Emulator отвечает на запросы сервиса так, как это делает мост симулятора:
// подтверждает запись переменных, отдает METAR и публикует массу самолета
type Emulator struct {
	client mqtt.Client
	codec  *simbridge.Codec
	config *EmulatorConfig
	rand   *rand.Rand

	mu     sync.Mutex
	values map[string]float64
	stop   chan struct{}
}

// Сводки, известные эмулятору, остальные аэродромы отвечают ошибкой
var metars = map[string]string{
	"EGLL": "EGLL 221150Z 24012KT 9999 SCT030 12/07 Q1018",
	"KJFK": "KJFK 221151Z 31015G25KT 10SM FEW050 M02/M12 A3012",
	"LFPG": "LFPG 221200Z 27008KT CAVOK 15/09 Q1013 NOSIG",
	"UUEE": "UUEE 221200Z VRB02MPS 9999 OVC020 M05/M08 Q1025",
}

func main() {
	var (
		brokerURL = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		clientID  = flag.String("client", "efb-sim-emulator", "MQTT client ID")
		prefix    = flag.String("prefix", "efb/sim", "Bridge topic prefix")
		rate      = flag.Duration("weight-rate", 5*time.Second, "TOTAL WEIGHT publish rate")
		ackDelay  = flag.Duration("ack-delay", 500*time.Millisecond, "Delay before failure acknowledgement")
		weight    = flag.Float64("weight", 141000, "Aircraft total weight, lbs")
		metarWait = flag.Duration("metar-delay", 200*time.Millisecond, "METAR response delay")
	)
	flag.Parse()

	config := &EmulatorConfig{
		BrokerURL:   *brokerURL,
		ClientID:    *clientID,
		TopicPrefix: *prefix,
		WeightRate:  *rate,
		AckDelay:    *ackDelay,
		WeightLbs:   *weight,
		MetarDelay:  *metarWait,
	}

	emulator, err := NewEmulator(config)
	if err != nil {
		log.Fatalf("Ошибка создания эмулятора: %v", err)
	}

	fmt.Printf("Эмулятор моста симулятора запущен\n")
	fmt.Printf("Брокер: %s, префикс: %s\n", config.BrokerURL, config.TopicPrefix)
	fmt.Printf("Масса: %.0f lbs, обновление каждые %v\n", config.WeightLbs, config.WeightRate)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go emulator.Start()

	<-sigChan
	fmt.Println("\nПолучен сигнал завершения...")
	emulator.Stop()
}

// NewEmulator подключается к брокеру и подписывается на запросы сервиса
func NewEmulator(config *EmulatorConfig) (*Emulator, error) {
	e := &Emulator{
		codec:  simbridge.NewCodec(config.TopicPrefix),
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		values: make(map[string]float64),
		stop:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		client.Subscribe(e.codec.SetTopic(), 1, e.handleSet)
		client.Subscribe(e.codec.MetarRequestTopic(), 1, e.handleMetarRequest)
	})

	e.client = mqtt.NewClient(opts)
	if token := e.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("ошибка подключения к MQTT брокеру: %w", token.Error())
	}

	return e, nil
}

// Start публикует массу самолета до вызова Stop
func (e *Emulator) Start() {
	ticker := time.NewTicker(e.config.WeightRate)
	defer ticker.Stop()

	e.publishWeight()
	for {
		select {
		case <-ticker.C:
			e.publishWeight()
		case <-e.stop:
			return
		}
	}
}

// Stop останавливает публикацию и отключается от брокера
func (e *Emulator) Stop() {
	close(e.stop)
	e.client.Disconnect(250)
}

func (e *Emulator) publishWeight() {
	// Расход топлива: масса медленно уменьшается
	e.mu.Lock()
	weight, ok := e.values[simbridge.TotalWeightVar]
	if !ok {
		weight = e.config.WeightLbs
	}
	weight -= e.rand.Float64() * 20
	e.values[simbridge.TotalWeightVar] = weight
	e.mu.Unlock()

	e.publishValue(simbridge.TotalWeightVar, "pounds", weight)
}

func (e *Emulator) handleSet(_ mqtt.Client, msg mqtt.Message) {
	var req simbridge.SetRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("Некорректный запрос записи: %v", err)
		return
	}

	e.mu.Lock()
	e.values[req.Name] = req.Value
	e.mu.Unlock()

	log.Printf("SET %s = %v (%s)", req.Name, req.Value, req.Unit)
	e.publishValue(req.Name, req.Unit, req.Value)

	// Симулятор сбрасывает переменную отказа в 0 после применения
	if req.Name == failures.ActivateVar || req.Name == failures.DeactivateVar {
		time.AfterFunc(e.config.AckDelay, func() {
			e.mu.Lock()
			e.values[req.Name] = 0
			e.mu.Unlock()
			e.publishValue(req.Name, req.Unit, 0)
		})
	}
}

func (e *Emulator) handleMetarRequest(_ mqtt.Client, msg mqtt.Message) {
	var req simbridge.MetarRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("Некорректный запрос METAR: %v", err)
		return
	}

	resp := simbridge.MetarResponse{ID: req.ID, ICAO: strings.ToUpper(req.ICAO)}
	if raw, ok := metars[resp.ICAO]; ok {
		resp.MetarString = raw
	} else {
		resp.Error = "METAR not available"
	}

	time.AfterFunc(e.config.MetarDelay, func() {
		payload, err := json.Marshal(resp)
		if err != nil {
			log.Printf("Ошибка кодирования ответа METAR: %v", err)
			return
		}
		token := e.client.Publish(e.codec.MetarResponseTopic(req.ID), 1, false, payload)
		token.Wait()
		log.Printf("METAR %s -> %q", resp.ICAO, resp.MetarString)
	})
}

func (e *Emulator) publishValue(name, unit string, value float64) {
	payload, err := json.Marshal(simbridge.ValueUpdate{
		Name:      name,
		Unit:      unit,
		Value:     value,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("Ошибка кодирования значения: %v", err)
		return
	}

	token := e.client.Publish(e.codec.ValueTopic(name), 1, true, payload)
	if token.Wait() && token.Error() != nil {
		log.Printf("Ошибка публикации %s: %v", name, token.Error())
	}
}
