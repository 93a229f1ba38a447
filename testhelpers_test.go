//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/config"
	rentalEvents "github.com/fleetrent/service-rental/internal/events"
	"github.com/fleetrent/service-rental/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// rentalStack holds wired-up rental service components.
type rentalStack struct {
	Bookings        *application.BookingService
	Invoices        *application.InvoiceService
	Fleet           *application.FleetService
	Consumer        *rentalEvents.GatewayConsumer
	CleanupProducer func()
}

func testRates() config.RateConfig {
	return config.RateConfig{
		FreeMileagePerDay: 50,
		ExtraMileageRate:  decimal.NewFromInt(20),
		TaxRatePercent:    decimal.Zero,
		InvoicePrefix:     "INV",
		PaymentTermsDays:  14,
		Currency:          "KES",
	}
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_rental",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_rental sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.VehicleModel{},
		&repository.BookingModel{},
		&repository.InvoiceModel{},
		&repository.PaymentModel{},
		&repository.InspectionPhotoModel{},
	))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		rentalEvents.TopicRentalEvents,
		rentalEvents.TopicBillingEvents,
		rentalEvents.TopicGatewayEvents,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupRentalStack wires up the full rental service stack. The availability
// cache runs disabled; these tests exercise the database path.
func setupRentalStack(t *testing.T, db *gorm.DB, brokers []string) *rentalStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	rates := testRates()

	tx := repository.NewGormTransactor(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	vehicleRepo := repository.NewGormVehicleRepository(db)
	invoiceRepo := repository.NewGormInvoiceRepository(db)
	cache := application.NewAvailabilityCache(nil, logger)
	producer := rentalEvents.NewKafkaPublisher(brokers, "service-rental-test", logger)

	bookingSvc := application.NewBookingService(bookingRepo, vehicleRepo, tx, cache, producer, rates, logger)
	invoiceSvc := application.NewInvoiceService(invoiceRepo, bookingRepo, tx, producer, rates, logger)
	fleetSvc := application.NewFleetService(vehicleRepo, tx, cache, logger)

	groupID := fmt.Sprintf("test-rental-%s", uuid.New().String()[:8])
	consumer := rentalEvents.NewGatewayConsumer(brokers, groupID, invoiceSvc, logger)

	return &rentalStack{
		Bookings:        bookingSvc,
		Invoices:        invoiceSvc,
		Fleet:           fleetSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedVehicle inserts an available fleet vehicle.
func seedVehicle(t *testing.T, db *gorm.DB, dailyRate int64) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	model := repository.VehicleModel{
		ID:                 uuid.New(),
		RegistrationNumber: fmt.Sprintf("KDA %s", uuid.New().String()[:6]),
		Make:               "Toyota",
		Model:              "Axio",
		Year:               2021,
		DailyRate:          decimal.NewFromInt(dailyRate),
		Odometer:           12000,
		Seats:              5,
		Available:          true,
		Status:             "active",
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed vehicle")
	return model.ID
}

// seedCompletedBooking inserts a booking in COMPLETED state with settlement
// figures already recalculated: 2 days x 5000 plus 150 extra km x 20, with a
// 2000 advance paid in cash.
func seedCompletedBooking(t *testing.T, db *gorm.DB, vehicleID uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	start := now.Add(-72 * time.Hour)
	end := now.Add(-24 * time.Hour)
	confirmedAt := start.Add(-24 * time.Hour)
	collectionOdo := int64(12000)
	returnOdo := int64(12250)
	staff := uuid.New()

	model := repository.BookingModel{
		ID:                   uuid.New(),
		BookingNumber:        fmt.Sprintf("RNT-%s", uuid.New().String()[:6]),
		VehicleID:            vehicleID,
		RenterID:             uuid.New(),
		Status:               "COMPLETED",
		StartDate:            start,
		EndDate:              end,
		DailyRate:            decimal.NewFromInt(5000),
		Currency:             "KES",
		TotalPrice:           decimal.NewFromInt(10000),
		ConfirmedBy:          &staff,
		ConfirmedAt:          &confirmedAt,
		AdvanceAmount:        decimal.NewFromInt(2000),
		AdvancePaid:          true,
		AdvancePaymentMethod: "cash",
		AdvancePaidAt:        &confirmedAt,
		FreeMileagePerDay:    50,
		FreeMileage:          100,
		ExtraMileageRate:     decimal.NewFromInt(20),
		CollectedBy:          &staff,
		CollectedAt:          &start,
		CollectionOdometer:   &collectionOdo,
		ReturnedBy:           &staff,
		ReturnedAt:           &end,
		ReturnOdometer:       &returnOdo,
		RentalDays:           2,
		RentalAmount:         decimal.NewFromInt(10000),
		TotalMileage:         250,
		ExtraMileage:         150,
		ExtraMileageCost:     decimal.NewFromInt(3000),
		FinalAmount:          decimal.NewFromInt(13000),
		BalanceDue:           decimal.NewFromInt(11000),
		Version:              4,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
	return model.ID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType, key string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := rentalEvents.NewKafkaPublisher(brokers, source, logger)
	defer func() { _ = producer.Close() }()

	require.NoError(t, producer.Publish(context.Background(), topic, eventType, key, data),
		"failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) rentalEvents.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		var ce rentalEvents.CloudEvent
		if err := json.Unmarshal(msg.Value, &ce); err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
