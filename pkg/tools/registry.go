package tools

// Kind selects the endpoint-construction rule for a tool.
type Kind int

const (
	// KindLiteral calls the path as-is.
	KindLiteral Kind = iota
	// KindDate appends an optional date path segment.
	KindDate
	// KindRange requires from/to query parameters.
	KindRange
	// KindPeriod appends {unit}/{count} path segments.
	KindPeriod
	// KindExercise appends a required exercise id segment.
	KindExercise
	// KindExerciseExport appends the exercise id and an export format.
	KindExerciseExport
	// KindUserInfo calls /users/{userID}.
	KindUserInfo
	// KindPhysicalInfo runs the transactional physical-information protocol.
	KindPhysicalInfo
)

// Definition is the static, process-lifetime description of one tool.
type Definition struct {
	Name        string
	Description string
	Kind        Kind
	Path        string
	Format      string   // export format for KindExerciseExport
	Flags       []string // boolean query flags, serialized only when true
	NeedsUserID bool
}

// Definitions returns the full tool table. The table is immutable; every
// tool maps onto exactly one AccessLink endpoint, except the transactional
// physical-information retrieval.
func Definitions() []Definition {
	return definitions
}

// Lookup finds a tool definition by name.
func Lookup(name string) (Definition, bool) {
	for _, def := range definitions {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

var definitions = []Definition{
	{
		Name:        "get_user_info",
		Description: "Get the registered Polar user's profile: name, birthdate, weight, height and registration date.",
		Kind:        KindUserInfo,
		NeedsUserID: true,
	},
	{
		Name:        "list_exercises",
		Description: "List the user's recent training sessions with sport, duration, heart rate and training load.",
		Kind:        KindLiteral,
		Path:        "/exercises",
		Flags:       []string{"samples", "zones"},
	},
	{
		Name:        "get_exercise",
		Description: "Get a single training session by its exercise id. Set samples or zones to include sample and heart-rate-zone data.",
		Kind:        KindExercise,
		Path:        "/exercises",
		Flags:       []string{"samples", "zones"},
	},
	{
		Name:        "get_exercise_fit",
		Description: "Get a training session in FIT format.",
		Kind:        KindExerciseExport,
		Path:        "/exercises",
		Format:      "fit",
	},
	{
		Name:        "get_exercise_tcx",
		Description: "Get a training session in TCX format.",
		Kind:        KindExerciseExport,
		Path:        "/exercises",
		Format:      "tcx",
	},
	{
		Name:        "get_exercise_gpx",
		Description: "Get a training session route in GPX format.",
		Kind:        KindExerciseExport,
		Path:        "/exercises",
		Format:      "gpx",
	},
	{
		Name:        "get_nightly_recharge",
		Description: "Get Nightly Recharge recovery data (ANS charge, sleep charge). Pass a date for one night, omit it for all available nights.",
		Kind:        KindDate,
		Path:        "/users/nightly-recharge",
	},
	{
		Name:        "get_nightly_recharge_range",
		Description: "Get Nightly Recharge recovery data for a date range.",
		Kind:        KindRange,
		Path:        "/users/nightly-recharge",
	},
	{
		Name:        "get_sleep",
		Description: "Get sleep stages, interruptions and sleep score. Pass a date for one night, omit it for all available nights.",
		Kind:        KindDate,
		Path:        "/users/sleep",
	},
	{
		Name:        "get_sleep_range",
		Description: "Get sleep data for a date range.",
		Kind:        KindRange,
		Path:        "/users/sleep",
	},
	{
		Name:        "get_activities",
		Description: "Get daily activity summaries (steps, calories, activity goal). Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/activities",
	},
	{
		Name:        "get_activities_range",
		Description: "Get daily activity summaries for a date range.",
		Kind:        KindRange,
		Path:        "/users/activities",
	},
	{
		Name:        "get_activity_samples",
		Description: "Get intraday activity step and MET samples. Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/activities/samples",
	},
	{
		Name:        "get_activity_samples_range",
		Description: "Get intraday activity samples for a date range.",
		Kind:        KindRange,
		Path:        "/users/activities/samples",
	},
	{
		Name:        "get_continuous_heart_rate",
		Description: "Get continuous heart rate samples. Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/continuous-heart-rate",
	},
	{
		Name:        "get_continuous_heart_rate_range",
		Description: "Get continuous heart rate samples for a date range.",
		Kind:        KindRange,
		Path:        "/users/continuous-heart-rate",
	},
	{
		Name:        "get_cardio_load",
		Description: "Get cardio load (training load vs. tolerance). Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/cardio-load",
	},
	{
		Name:        "get_cardio_load_range",
		Description: "Get cardio load for a date range.",
		Kind:        KindRange,
		Path:        "/users/cardio-load",
	},
	{
		Name:        "get_cardio_load_period",
		Description: "Get cardio load for a trailing period, e.g. the last 28 days or the last 3 months.",
		Kind:        KindPeriod,
		Path:        "/users/cardio-load/period",
	},
	{
		Name:        "get_alertness",
		Description: "Get SleepWise alertness predictions. Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/sleepwise/alertness",
	},
	{
		Name:        "get_circadian_bedtime",
		Description: "Get SleepWise circadian bedtime guidance. Pass a date for one day, omit it for all available days.",
		Kind:        KindDate,
		Path:        "/users/sleepwise/circadian-bedtime",
	},
	{
		Name:        "get_body_temperature",
		Description: "Get nightly body temperature measurements for a date range.",
		Kind:        KindRange,
		Path:        "/users/biosensing/bodytemperature",
	},
	{
		Name:        "get_skin_temperature",
		Description: "Get nightly skin temperature measurements for a date range.",
		Kind:        KindRange,
		Path:        "/users/biosensing/skintemperature",
	},
	{
		Name:        "get_spo2",
		Description: "Get nightly blood oxygen (SpO2) measurements for a date range.",
		Kind:        KindRange,
		Path:        "/users/biosensing/spo2",
	},
	{
		Name:        "get_physical_info",
		Description: "Get new physical information updates (weight, height, VO2 max, resting heart rate) via the AccessLink transaction protocol. Each update is delivered once.",
		Kind:        KindPhysicalInfo,
		NeedsUserID: true,
	},
}
