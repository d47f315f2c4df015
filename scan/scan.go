// Package scan resolves the full attribute catalog of a device into a report.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/micromdm/nanoprobe/hostinfo"
	"github.com/micromdm/nanoprobe/inventory/storage"
	"github.com/micromdm/nanoprobe/log/logkeys"
	"github.com/micromdm/nanoprobe/probe"
	"github.com/micromdm/nanoprobe/runner"
	"github.com/micromdm/nanoprobe/serialdate"
	"github.com/micromdm/nanoprobe/utils/uuid"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// Key holds the identifying attributes of a device.
type Key struct {
	Model     probe.Result
	Serial    probe.Result
	IMEI      []probe.Result
	BuildDate probe.Result
}

// Report is the result of one scan. It is not modified after Scan returns.
type Report struct {
	ID      string
	Backend runner.Backend
	Started time.Time

	Key         Key
	Manufacture serialdate.Date

	// System holds the system facts in catalog order.
	System []probe.Result
}

// DeviceID is the inventory ID of the report: the serial number when it
// resolved, otherwise the report ID.
func (r *Report) DeviceID() string {
	if r.Key.Serial.Validated {
		return r.Key.Serial.Value
	}
	return r.ID
}

// Counts returns how many attributes resolved out of how many were probed.
// Each IMEI slot found counts as one attribute.
func (r *Report) Counts() (resolved, total int) {
	count := func(res probe.Result) {
		total++
		if res.Validated {
			resolved++
		}
	}
	count(r.Key.Model)
	count(r.Key.Serial)
	for _, res := range r.Key.IMEI {
		count(res)
	}
	total++
	if r.Manufacture.Known() {
		resolved++
	}
	for _, res := range r.System {
		count(res)
	}
	return
}

// Values converts the validated parts of r to inventory values.
// Unresolved attributes are left out so earlier scans' values survive
// the merge in storage.
func (r *Report) Values() storage.Values {
	v := storage.Values{
		storage.KeyBackend:    r.Backend.String(),
		storage.KeyLastScanID: r.ID,
		storage.KeyModified:   r.Started,
	}
	if r.Key.Serial.Validated {
		v[storage.KeySerialNumber] = r.Key.Serial.Value
	}
	if r.Key.Model.Validated {
		v[storage.KeyModel] = r.Key.Model.Value
	}
	var imeis []string
	for _, res := range r.Key.IMEI {
		if res.Validated {
			imeis = append(imeis, res.Value)
		}
	}
	if len(imeis) > 0 {
		v[storage.KeyIMEI] = imeis
	}
	if r.Key.BuildDate.Validated {
		v[storage.KeyBuildDate] = r.Key.BuildDate.Value
	}
	if r.Manufacture.Known() {
		v[storage.KeyManufacture] = r.Manufacture.String()
		v[storage.KeyManufactureConf] = r.Manufacture.Precision.String()
	}
	for _, res := range r.System {
		if res.Validated {
			v[storage.KeySystemPrefix+res.Name] = res.Value
		}
	}
	return v
}

// Scanner runs the catalog against a backend.
type Scanner struct {
	runner  runner.Runner
	catalog Catalog
	ider    uuid.IDer
	store   storage.Storage
	logger  log.Logger
	now     func() time.Time
}

type Option func(*Scanner)

// WithLogger configures the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithStorage persists every report to store.
func WithStorage(store storage.Storage) Option {
	return func(s *Scanner) {
		s.store = store
	}
}

// WithIDer sets the report ID generator.
func WithIDer(ider uuid.IDer) Option {
	return func(s *Scanner) {
		s.ider = ider
	}
}

// WithCatalog replaces the default attribute catalog.
func WithCatalog(c Catalog) Option {
	return func(s *Scanner) {
		s.catalog = c
	}
}

// New creates a new scanner running commands through r.
func New(r runner.Runner, opts ...Option) *Scanner {
	s := &Scanner{
		runner:  r,
		catalog: DefaultCatalog(hostinfo.New(r)),
		ider:    uuid.NewUUID(),
		logger:  log.NopLogger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ctxKeyScanID struct{}

// Scan resolves every catalog attribute against b, one at a time and in
// catalog order. An attribute that cannot be resolved is reported as
// unavailable and never stops the scan. The returned error only reports a
// failure to persist the report, which is still returned.
func (s *Scanner) Scan(ctx context.Context, b runner.Backend) (*Report, error) {
	r := &Report{
		ID:      s.ider.ID(),
		Backend: b,
		Started: s.now(),
	}

	ctx = context.WithValue(ctx, ctxKeyScanID{}, r.ID)
	ctx = ctxlog.AddFunc(ctx, ctxlog.SimpleStringFunc(logkeys.ScanID, ctxKeyScanID{}))
	logger := ctxlog.Logger(ctx, s.logger)
	logger.Debug(logkeys.Message, "starting scan", logkeys.Backend, b)

	res := probe.NewResolver(s.runner, b, probe.WithLogger(s.logger))
	resolve := func(a Attribute) probe.Result {
		ret := res.Resolve(ctx, a.Name, a.Spec, a.Validate)
		if !ret.Validated {
			logger.Info(logkeys.Message, "attribute unavailable", logkeys.Attribute, a.Name)
		}
		return ret
	}

	c := s.catalog
	r.Key.IMEI = res.ResolveMulti(ctx, c.IMEI.Name, c.IMEI.Spec, c.IMEI.Validate, MaxIMEIs)
	r.Key.Serial = resolve(c.Serial)
	r.Key.Model = resolve(c.Model)
	r.Key.BuildDate = resolve(c.BuildDate)

	var serial, built string
	if r.Key.Serial.Validated {
		serial = r.Key.Serial.Value
	}
	if r.Key.BuildDate.Validated {
		built = r.Key.BuildDate.Value
	}
	r.Manufacture = serialdate.Decode(serial, built)

	for _, a := range c.System {
		r.System = append(r.System, resolve(a))
	}

	resolved, total := r.Counts()
	logger.Info(
		logkeys.Message, "scan complete",
		logkeys.Backend, b,
		"resolved", resolved,
		logkeys.GenericCount, total,
	)

	if s.store == nil {
		return r, nil
	}
	if err := s.store.StoreInventoryValues(ctx, r.DeviceID(), r.Values()); err != nil {
		return r, fmt.Errorf("storing scan %s: %w", r.ID, err)
	}
	return r, nil
}
