package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/repository"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/internal/simbridge"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	brokerURL   = "tcp://localhost:1883"
	topicPrefix = "efb/integration"
)

// SimPipelineTestSuite тестирует цепочку Redis → сервис → MQTT мост → симулятор
type SimPipelineTestSuite struct {
	suite.Suite
	ctx       context.Context
	logger    *utils.Logger
	redisRepo *repository.RedisRepository
	bridge    *simbridge.Client
	sim       mqtt.Client
	codec     *simbridge.Codec

	mu     sync.Mutex
	writes []simbridge.SetRequest
}

func (suite *SimPipelineTestSuite) SetupSuite() {
	suite.ctx = context.Background()
	suite.logger = utils.NewLogger("error", "text")
	suite.codec = simbridge.NewCodec(topicPrefix)

	var err error
	suite.redisRepo, err = repository.NewRedisRepository(&config.RedisConfig{
		URL:           "redis://localhost:6379",
		DB:            14, // Используем отдельную DB для интеграционных тестов
		PoolSize:      5,
		MinIdleConns:  1,
		SettingsKey:   "efb:integration:settings",
		ChangeChannel: "efb:integration:settings:changed",
	}, suite.logger)
	require.NoError(suite.T(), err)

	if err := suite.redisRepo.Ping(suite.ctx); err != nil {
		suite.T().Skip("Redis not available for integration testing: " + err.Error())
	}

	// Эмулятор симулятора: подтверждает записи так же, как мост
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("efb_integration_sim")
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(5 * time.Second)

	suite.sim = mqtt.NewClient(opts)
	if token := suite.sim.Connect(); token.Wait() && token.Error() != nil {
		suite.T().Skip("MQTT broker not available for integration testing: " + token.Error().Error())
	}

	token := suite.sim.Subscribe(suite.codec.SetTopic(), 1, suite.handleSet)
	require.True(suite.T(), token.WaitTimeout(5*time.Second))
	require.NoError(suite.T(), token.Error())

	token = suite.sim.Subscribe(suite.codec.MetarRequestTopic(), 1, suite.handleMetarRequest)
	require.True(suite.T(), token.WaitTimeout(5*time.Second))
	require.NoError(suite.T(), token.Error())

	suite.bridge, err = simbridge.NewClient(&config.MQTTConfig{
		URL:            brokerURL,
		ClientID:       "efb_integration_api",
		CleanSession:   true,
		TopicPrefix:    topicPrefix,
		RequestTimeout: 3 * time.Second,
	}, suite.logger)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.bridge.Connect())
}

func (suite *SimPipelineTestSuite) SetupTest() {
	suite.mu.Lock()
	suite.writes = nil
	suite.mu.Unlock()
	require.NoError(suite.T(), suite.redisRepo.GetClient().Del(suite.ctx, "efb:integration:settings").Err())
}

func (suite *SimPipelineTestSuite) TearDownSuite() {
	if suite.bridge != nil {
		suite.bridge.Disconnect()
	}
	if suite.sim != nil && suite.sim.IsConnected() {
		suite.sim.Disconnect(1000)
	}
	if suite.redisRepo != nil {
		suite.redisRepo.GetClient().Del(suite.ctx, "efb:integration:settings")
		suite.redisRepo.Close()
	}
}

func (suite *SimPipelineTestSuite) handleSet(client mqtt.Client, msg mqtt.Message) {
	var req simbridge.SetRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		return
	}

	suite.mu.Lock()
	suite.writes = append(suite.writes, req)
	suite.mu.Unlock()

	// Переменные отказов сбрасываются в 0 после применения
	value := req.Value
	if req.Name == failures.ActivateVar || req.Name == failures.DeactivateVar {
		value = 0
	}
	payload, _ := json.Marshal(simbridge.ValueUpdate{Name: req.Name, Unit: req.Unit, Value: value})
	client.Publish(suite.codec.ValueTopic(req.Name), 1, false, payload)
}

func (suite *SimPipelineTestSuite) handleMetarRequest(client mqtt.Client, msg mqtt.Message) {
	var req simbridge.MetarRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		return
	}

	resp := simbridge.MetarResponse{ID: req.ID, ICAO: req.ICAO}
	if req.ICAO == "EGLL" {
		resp.MetarString = "EGLL 221150Z 24012KT 9999 SCT030 12/07 Q1018"
	} else {
		resp.Error = "METAR not available"
	}
	payload, _ := json.Marshal(resp)
	client.Publish(suite.codec.MetarResponseTopic(req.ID), 1, false, payload)
}

func (suite *SimPipelineTestSuite) writesFor(simvar string) []float64 {
	suite.mu.Lock()
	defer suite.mu.Unlock()

	var values []float64
	for _, w := range suite.writes {
		if w.Name == simvar {
			values = append(values, w.Value)
		}
	}
	return values
}

func (suite *SimPipelineTestSuite) TestSettingsSyncToSimulator() {
	entry, ok := settings.Lookup("CONFIG_BOARDING_RATE")
	require.True(suite.T(), ok)

	handle, err := settings.Sync(suite.ctx, suite.redisRepo, suite.bridge, []settings.Entry{entry}, suite.logger)
	require.NoError(suite.T(), err)
	defer handle.Close()

	// Начальное значение по умолчанию REAL → 2
	assert.Eventually(suite.T(), func() bool {
		return len(suite.writesFor(entry.SimVar)) >= 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(suite.T(), suite.redisRepo.Set(suite.ctx, entry.Key, "INSTANT"))

	assert.Eventually(suite.T(), func() bool {
		values := suite.writesFor(entry.SimVar)
		return len(values) >= 2 && values[len(values)-1] == 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(suite.T(), float64(2), suite.writesFor(entry.SimVar)[0])
}

func (suite *SimPipelineTestSuite) TestMetarThroughBridge() {
	source, err := metar.NewSource(&config.MetarConfig{Source: "MSFS"}, suite.bridge, nil, suite.logger)
	require.NoError(suite.T(), err)

	record, err := source.Fetch(suite.ctx, "EGLL")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "EGLL", record.Station)
	assert.Equal(suite.T(), float64(240), record.Wind.Degrees)
	assert.Equal(suite.T(), float64(1018), record.Barometer.Mb)

	_, err = source.Fetch(suite.ctx, "ZZZZ")
	var notice *metar.Notice
	assert.ErrorAs(suite.T(), err, &notice)
}

func (suite *SimPipelineTestSuite) TestFailureAcknowledgement() {
	catalog, err := failures.NewCatalog(failures.DefaultCatalog())
	require.NoError(suite.T(), err)

	orch, err := failures.NewOrchestrator(catalog, suite.bridge, suite.logger)
	require.NoError(suite.T(), err)

	unsubscribe := suite.bridge.OnValue(func(u simbridge.ValueUpdate) {
		orch.HandleValue(u.Name, u.Value)
	})
	defer unsubscribe()

	id := catalog.All()[0].Identifier
	action, err := orch.Toggle(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), failures.ActionActivate, action)

	assert.Eventually(suite.T(), func() bool {
		return orch.IsActive(id) && !orch.IsChanging(id)
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(suite.T(), []float64{float64(id)}, suite.writesFor(failures.ActivateVar))

	action, err = orch.Toggle(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), failures.ActionDeactivate, action)

	assert.Eventually(suite.T(), func() bool {
		return !orch.IsActive(id) && !orch.IsChanging(id)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSimPipelineTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(SimPipelineTestSuite))
}
