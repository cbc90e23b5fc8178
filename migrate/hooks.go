package migrate

import "context"

// Hooks is a bundle of optional lifecycle callbacks (§4.9). Any field
// may be nil; the Dispatcher treats absence as a no-op rather than an
// error. Modeled as a record of optional functions rather than an
// interface with a concrete implementer, per spec.md §9's "polymorphic
// hooks: model as a record of optional functions" note — there's no
// virtual dispatch here, just iteration over a composed list.
type Hooks struct {
	OnStart          func(ctx context.Context, total, pending int) error
	OnBeforeBackup   func(ctx context.Context) error
	OnAfterBackup    func(ctx context.Context, path string) error
	OnBeforeMigrate  func(ctx context.Context, script *MigrationScript) error
	OnAfterMigrate   func(ctx context.Context, script *MigrationScript, info *MigrationInfo) error
	OnMigrationError func(ctx context.Context, script *MigrationScript, err error) error
	OnBeforeRestore  func(ctx context.Context, path string) error
	OnAfterRestore   func(ctx context.Context, path string) error
	OnComplete       func(ctx context.Context, result *MigrationResult) error
	OnError          func(ctx context.Context, err error) error
}

// Dispatcher fans a call out to a composite of Hooks bundles, in
// registration order. A hook throwing is logged via Logger but never
// aborts the migration; the thrown error is returned so the caller can
// attach it to result.Errors where applicable.
type Dispatcher struct {
	bundles []Hooks
	log     Logger
}

// NewDispatcher composes the given bundles, run in order, each fully
// dispatched (all its non-nil callbacks for the given event) before the
// next bundle runs.
func NewDispatcher(log Logger, bundles ...Hooks) *Dispatcher {
	if log == nil {
		log = NopLogger{}
	}
	return &Dispatcher{bundles: bundles, log: log}
}

func (d *Dispatcher) swallow(err error) error {
	if err == nil {
		return nil
	}
	d.log.Log(LogWarn{Message: "hook error: " + err.Error()})
	return err
}

// Start dispatches OnStart(total, pending) across every bundle.
func (d *Dispatcher) Start(ctx context.Context, total, pending int) (errs []error) {
	for _, b := range d.bundles {
		if b.OnStart == nil {
			continue
		}
		if err := d.swallow(b.OnStart(ctx, total, pending)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// BeforeBackup dispatches OnBeforeBackup across every bundle.
func (d *Dispatcher) BeforeBackup(ctx context.Context) (errs []error) {
	for _, b := range d.bundles {
		if b.OnBeforeBackup == nil {
			continue
		}
		if err := d.swallow(b.OnBeforeBackup(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// AfterBackup dispatches OnAfterBackup(path) across every bundle.
func (d *Dispatcher) AfterBackup(ctx context.Context, path string) (errs []error) {
	for _, b := range d.bundles {
		if b.OnAfterBackup == nil {
			continue
		}
		if err := d.swallow(b.OnAfterBackup(ctx, path)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// BeforeMigrate dispatches OnBeforeMigrate(script) across every bundle.
func (d *Dispatcher) BeforeMigrate(ctx context.Context, s *MigrationScript) (errs []error) {
	for _, b := range d.bundles {
		if b.OnBeforeMigrate == nil {
			continue
		}
		if err := d.swallow(b.OnBeforeMigrate(ctx, s)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// AfterMigrate dispatches OnAfterMigrate(script, info) across every bundle.
func (d *Dispatcher) AfterMigrate(ctx context.Context, s *MigrationScript, info *MigrationInfo) (errs []error) {
	for _, b := range d.bundles {
		if b.OnAfterMigrate == nil {
			continue
		}
		if err := d.swallow(b.OnAfterMigrate(ctx, s, info)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// MigrationError dispatches OnMigrationError(script, err) across every bundle.
func (d *Dispatcher) MigrationError(ctx context.Context, s *MigrationScript, cause error) (errs []error) {
	for _, b := range d.bundles {
		if b.OnMigrationError == nil {
			continue
		}
		if err := d.swallow(b.OnMigrationError(ctx, s, cause)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// BeforeRestore dispatches OnBeforeRestore(path) across every bundle.
func (d *Dispatcher) BeforeRestore(ctx context.Context, path string) (errs []error) {
	for _, b := range d.bundles {
		if b.OnBeforeRestore == nil {
			continue
		}
		if err := d.swallow(b.OnBeforeRestore(ctx, path)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// AfterRestore dispatches OnAfterRestore(path) across every bundle.
func (d *Dispatcher) AfterRestore(ctx context.Context, path string) (errs []error) {
	for _, b := range d.bundles {
		if b.OnAfterRestore == nil {
			continue
		}
		if err := d.swallow(b.OnAfterRestore(ctx, path)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// Complete dispatches OnComplete(result) across every bundle.
func (d *Dispatcher) Complete(ctx context.Context, result *MigrationResult) (errs []error) {
	for _, b := range d.bundles {
		if b.OnComplete == nil {
			continue
		}
		if err := d.swallow(b.OnComplete(ctx, result)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}

// Error dispatches OnError(err) across every bundle.
func (d *Dispatcher) Error(ctx context.Context, cause error) (errs []error) {
	for _, b := range d.bundles {
		if b.OnError == nil {
			continue
		}
		if err := d.swallow(b.OnError(ctx, cause)); err != nil {
			errs = append(errs, err)
		}
	}
	return
}
