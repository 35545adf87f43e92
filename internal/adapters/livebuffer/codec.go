package livebuffer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null"

	"github.com/ghalamif/LiveFlow/internal/domain"
)

const (
	// TimestampLayout sorts lexically when every record is in UTC.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	dateLayout      = "2006-01-02"

	// legacyFieldCount is the number of fields every record must carry.
	legacyFieldCount = 24
	// FieldCount is the number of fields written by EncodeRecord: the legacy
	// fields, gust wind speed, then the extra sensor channels.
	FieldCount = legacyFieldCount + 1 + domain.ExtraSensorCount
)

var (
	ErrShortRecord  = errors.New("livebuffer: record has too few fields")
	ErrBadTimestamp = errors.New("livebuffer: record timestamp is invalid")
)

// EncodeRecord renders s as one tab separated line, newline included.
func EncodeRecord(s domain.Sample) string {
	d := s.Davis
	fields := make([]string, 0, FieldCount)
	fields = append(fields,
		s.Timestamp.UTC().Format(TimestampLayout),
		strconv.Itoa(int(s.HardwareType)),
		flag(s.IndoorDataAvailable),
		num(s.Temperature),
		num(s.IndoorTemperature),
		num(s.ApparentTemperature),
		num(s.WindChill),
		num(s.DewPoint),
		num(s.Humidity),
		num(s.IndoorHumidity),
		num(s.Pressure),
		num(s.WindSpeed),
		num(s.WindDirection),
		num(d.StormRain),
		num(d.RainRate),
		date(d.StormStartDate),
		flag(d.StormDateValid),
		strconv.Itoa(d.BarometerTrend),
		strconv.Itoa(d.ForecastIcon),
		strconv.Itoa(d.ForecastRule),
		strconv.Itoa(d.TxBatteryStatus),
		num(d.ConsoleBatteryVoltage),
		num(d.UVIndex),
		num(d.SolarRadiation),
		num(s.GustWindSpeed),
	)
	for _, ch := range d.Extra.Channels() {
		if ch.Valid {
			fields = append(fields, num(ch.Float64))
		} else {
			fields = append(fields, "")
		}
	}
	return strings.Join(fields, "\t") + "\n"
}

// DecodeRecord parses one line written by EncodeRecord. Records written before
// gust speed and extra sensors were added decode with those fields unset.
// Numeric fields that fail to parse decode as zero.
func DecodeRecord(line string) (domain.Sample, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(parts) < legacyFieldCount {
		return domain.Sample{}, fmt.Errorf("%w: got %d, want at least %d", ErrShortRecord, len(parts), legacyFieldCount)
	}

	ts, err := parseTimestamp(parts[0])
	if err != nil {
		return domain.Sample{}, fmt.Errorf("%w: %q", ErrBadTimestamp, parts[0])
	}

	s := domain.Sample{
		Timestamp:           ts,
		HardwareType:        domain.HardwareType(atoi(parts[1])),
		IndoorDataAvailable: parts[2] == "t",
		Temperature:         atof(parts[3]),
		IndoorTemperature:   atof(parts[4]),
		ApparentTemperature: atof(parts[5]),
		WindChill:           atof(parts[6]),
		DewPoint:            atof(parts[7]),
		Humidity:            atof(parts[8]),
		IndoorHumidity:      atof(parts[9]),
		Pressure:            atof(parts[10]),
		WindSpeed:           atof(parts[11]),
		WindDirection:       atof(parts[12]),
		Davis: domain.DavisData{
			StormRain:             atof(parts[13]),
			RainRate:              atof(parts[14]),
			StormStartDate:        parseDate(parts[15]),
			StormDateValid:        parts[16] == "t",
			BarometerTrend:        atoi(parts[17]),
			ForecastIcon:          atoi(parts[18]),
			ForecastRule:          atoi(parts[19]),
			TxBatteryStatus:       atoi(parts[20]),
			ConsoleBatteryVoltage: atof(parts[21]),
			UVIndex:               atof(parts[22]),
			SolarRadiation:        atof(parts[23]),
		},
	}

	rest := parts[legacyFieldCount:]
	if len(rest) > 0 {
		s.GustWindSpeed = atof(rest[0])
		rest = rest[1:]
	}
	for i, ch := range s.Davis.Extra.Channels() {
		if i >= len(rest) {
			break
		}
		if v, err := strconv.ParseFloat(rest[i], 64); err == nil {
			*ch = null.FloatFrom(v)
		}
	}
	return s, nil
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, v)
	if err == nil {
		return ts, nil
	}
	// Older files carry second precision timestamps.
	return time.Parse(time.RFC3339, v)
}

func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if d, err := time.Parse(dateLayout, v); err == nil {
		return d
	}
	if d, err := time.Parse(time.RFC3339, v); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func atof(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

func atoi(v string) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return i
}
