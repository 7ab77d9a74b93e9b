package metrics

// Recorder incrementa los contadores de auth respetando el kill switch
// metrics_enabled. Un *Recorder nil es un no-op, útil en tests.
type Recorder struct {
	enabled bool
}

// NewRecorder crea un Recorder. Con enabled=false todas las operaciones son no-op.
func NewRecorder(enabled bool) *Recorder {
	return &Recorder{enabled: enabled}
}

func (r *Recorder) on() bool { return r != nil && r.enabled }

func (r *Recorder) LoginSuccess(provider string) {
	if r.on() {
		LoginSuccess.WithLabelValues(provider).Inc()
	}
}

func (r *Recorder) LoginFailure(provider, reason string) {
	if r.on() {
		LoginFailure.WithLabelValues(provider, reason).Inc()
	}
}

func (r *Recorder) ProviderUnavailable(provider string) {
	if r.on() {
		ProviderUnavailable.WithLabelValues(provider).Inc()
	}
}

func (r *Recorder) BindSuccess() {
	if r.on() {
		BindSuccess.Inc()
	}
}

func (r *Recorder) BindFailure(reason string) {
	if r.on() {
		BindFailure.WithLabelValues(reason).Inc()
	}
}

func (r *Recorder) UnbindSuccess() {
	if r.on() {
		UnbindSuccess.Inc()
	}
}

func (r *Recorder) UnbindFailure(reason string) {
	if r.on() {
		UnbindFailure.WithLabelValues(reason).Inc()
	}
}

func (r *Recorder) SyncError(reason string) {
	if r.on() {
		SyncError.WithLabelValues(reason).Inc()
	}
}

func (r *Recorder) RateLimited(scope string) {
	if r.on() {
		RateLimited.WithLabelValues(scope).Inc()
	}
}
