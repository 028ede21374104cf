package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/chat"
	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/internal/domain/notification"
	"github.com/carebook/carebook/pkg/metrics"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	models := []any{
		&domain.User{},
		&doctor.Doctor{},
		&doctor.Rating{},
		&appointment.Appointment{},
		&notification.Notification{},
		&chat.Message{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db, log); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

type indexSpec struct {
	name  string
	query string
	// critical indexes enforce correctness, not just speed. Failing to
	// create one aborts startup instead of running without the guarantee.
	critical bool
}

var indexes = []indexSpec{
	// One live booking per doctor/date/slot. The insert hitting this index
	// is what arbitrates concurrent bookings of the same slot, so the
	// service must not come up without it.
	{
		name:     "idx_appointments_slot_unique",
		query:    `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_slot_unique ON appointments (doctor_id, date, slot) WHERE deleted_at IS NULL AND status != 'cancelled'`,
		critical: true,
	},
	{
		name:  "idx_appointments_doctor_date",
		query: `CREATE INDEX IF NOT EXISTS idx_appointments_doctor_date ON appointments (doctor_id, date) WHERE deleted_at IS NULL`,
	},
	{
		name:  "idx_doctors_name_trgm",
		query: `CREATE INDEX IF NOT EXISTS idx_doctors_name_trgm ON doctors USING gin ((first_name || ' ' || last_name) gin_trgm_ops) WHERE deleted_at IS NULL`,
	},
	{
		name:  "idx_notifications_unread",
		query: `CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications (user_id, created_at DESC) WHERE read = false`,
	},
}

func createIndexes(db *gorm.DB, log *zap.Logger) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		log.Warn("pg_trgm extension unavailable, name search index may not build", zap.Error(err))
	}
	return applyIndexes(db, log, indexes)
}

func applyIndexes(db *gorm.DB, log *zap.Logger, specs []indexSpec) error {
	for _, idx := range specs {
		if err := db.Exec(idx.query).Error; err != nil {
			if idx.critical {
				return fmt.Errorf("creating index %s: %w", idx.name, err)
			}
			log.Warn("skipping optional index",
				zap.String("index", idx.name),
				zap.Error(err),
			)
		}
	}
	return nil
}

const connSampleInterval = 15 * time.Second

// Instrument registers query-timing callbacks on the gorm instance and
// starts a sampler keeping the open-connection gauge current. Call once
// per process, after Connect.
func Instrument(db *gorm.DB, m *metrics.Collector) error {
	start := func(db *gorm.DB) {
		db.InstanceSet(queryStartKey, time.Now())
	}
	observe := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			v, ok := db.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			started, ok := v.(time.Time)
			if !ok {
				return
			}
			m.DBQueryDuration.WithLabelValues(op, db.Statement.Table).Observe(time.Since(started).Seconds())
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before registerer
		after  registerer
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	for _, h := range hooks {
		if err := h.before.Register("metrics:"+h.op+"_start", start); err != nil {
			return fmt.Errorf("registering %s callback: %w", h.op, err)
		}
		if err := h.after.Register("metrics:"+h.op+"_done", observe(h.op)); err != nil {
			return fmt.Errorf("registering %s callback: %w", h.op, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	go func() {
		ticker := time.NewTicker(connSampleInterval)
		defer ticker.Stop()
		for range ticker.C {
			m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}()

	return nil
}

const queryStartKey = "carebook:query_start"

type registerer interface {
	Register(name string, fn func(*gorm.DB)) error
}
