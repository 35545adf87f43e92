package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/guregu/null"
	"github.com/lib/pq"
	"github.com/sony/gobreaker/v2"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

const DefaultTable = "live_history"

var (
	ErrNoStation = errors.New("postgres sink: no station connected")
	// ErrCircuitOpen is returned without touching the database while recent
	// writes keep failing.
	ErrCircuitOpen = errors.New("postgres sink: circuit open")
)

const (
	writeTimeout   = 5 * time.Second
	connectRetries = 5
	// tripAfter consecutive failed writes open the circuit for breakerTimeout.
	tripAfter      = 3
	breakerTimeout = 30 * time.Second
)

var columns = []string{
	"station_code", "ts", "hw_type",
	"temperature", "humidity", "pressure",
	"wind_speed", "gust_wind_speed", "wind_direction",
	"rain_rate", "storm_rain", "uv_index", "solar_radiation",
}

// PostgresSink stores emitted samples as station history. Synthetic samples
// are not stored.
type PostgresSink struct {
	db      *sql.DB
	table   string
	station string
	obs     ports.Observability
	breaker *gobreaker.CircuitBreaker[sql.Result]
}

type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	obs            ports.Observability
	breakerTimeout time.Duration
	retry          backoff.BackOff
}

// WithPostgresObservability logs connection retries and circuit changes.
func WithPostgresObservability(obs ports.Observability) PostgresOption {
	return func(o *postgresOptions) { o.obs = obs }
}

// WithBreakerTimeout sets how long the circuit stays open before a trial write.
func WithBreakerTimeout(d time.Duration) PostgresOption {
	return func(o *postgresOptions) { o.breakerTimeout = d }
}

// WithConnectBackOff replaces the exponential backoff used by OpenPostgres.
func WithConnectBackOff(b backoff.BackOff) PostgresOption {
	return func(o *postgresOptions) { o.retry = b }
}

func buildOptions(opts []PostgresOption) postgresOptions {
	o := postgresOptions{breakerTimeout: breakerTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// OpenPostgres connects with lib/pq, retrying the first ping with
// exponential backoff until it succeeds, retries run out or ctx is done.
func OpenPostgres(ctx context.Context, connString, table string, opts ...PostgresOption) (*PostgresSink, error) {
	o := buildOptions(opts)
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	retry := o.retry
	if retry == nil {
		retry = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries)
	}
	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, wait time.Duration) {
		if o.obs != nil {
			o.obs.LogError("postgres_connect_retry", err, ports.Field{Key: "wait", Value: wait.String()})
		}
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(retry, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return NewPostgresSink(db, table, opts...), nil
}

func NewPostgresSink(db *sql.DB, table string, opts ...PostgresOption) *PostgresSink {
	o := buildOptions(opts)
	if table == "" {
		table = DefaultTable
	}
	p := &PostgresSink{db: db, table: quoteTable(table), obs: o.obs}
	p.breaker = gobreaker.NewCircuitBreaker[sql.Result](gobreaker.Settings{
		Name:        "postgres",
		MaxRequests: 1,
		Timeout:     o.breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if p.obs != nil {
				p.obs.LogInfo("postgres_circuit",
					ports.Field{Key: "from", Value: from.String()},
					ports.Field{Key: "to", Value: to.String()})
			}
		},
	})
	return p
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) ConnectStation(code string) { p.station = code }

// EnsureSchema creates the history table when it does not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + p.table + ` (
	station_code TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	hw_type SMALLINT NOT NULL,
	temperature DOUBLE PRECISION,
	humidity DOUBLE PRECISION,
	pressure DOUBLE PRECISION,
	wind_speed DOUBLE PRECISION,
	gust_wind_speed DOUBLE PRECISION,
	wind_direction DOUBLE PRECISION,
	rain_rate DOUBLE PRECISION,
	storm_rain DOUBLE PRECISION,
	uv_index DOUBLE PRECISION,
	solar_radiation DOUBLE PRECISION,
	PRIMARY KEY (station_code, ts)
)`
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (p *PostgresSink) WriteBatch(samples []domain.Sample) error {
	stored := 0
	for _, s := range samples {
		if !s.Synthetic {
			stored++
		}
	}
	if stored == 0 {
		return nil
	}
	if p.station == "" {
		return ErrNoStation
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, stored*len(columns))
	rows := 0
	for _, s := range samples {
		if s.Synthetic {
			continue
		}
		if rows > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for i := range columns {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+i+1)
		}
		b.WriteString(")")
		args = append(args, p.row(s)...)
		rows++
	}

	b.WriteString(" ON CONFLICT (station_code, ts) DO NOTHING")

	_, err := p.breaker.Execute(func() (sql.Result, error) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return p.db.ExecContext(ctx, b.String(), args...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the circuit breaker state, "closed" while writes succeed.
func (p *PostgresSink) State() string { return p.breaker.State().String() }

func (p *PostgresSink) Close() error { return p.db.Close() }

func (p *PostgresSink) row(s domain.Sample) []any {
	davis := func(v float64) null.Float {
		return null.NewFloat(v, s.IsDavis())
	}
	return []any{
		p.station,
		s.Timestamp.UTC(),
		int(s.HardwareType),
		s.Temperature,
		s.Humidity,
		s.Pressure,
		s.WindSpeed,
		s.GustWindSpeed,
		s.WindDirection,
		davis(s.Davis.RainRate),
		davis(s.Davis.StormRain),
		davis(s.Davis.UVIndex),
		davis(s.Davis.SolarRadiation),
	}
}

// quoteTable quotes every part of a possibly schema qualified name.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

var _ ports.StationSink = (*PostgresSink)(nil)
