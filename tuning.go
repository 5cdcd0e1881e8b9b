package wyvern

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var tuningSchemaSource string

// Tuning holds every design parameter of the flight and combat logic. The
// defaults are the values the behaviour was tuned with.
type Tuning struct {
	// AutoTame tames an untamed dragon on the first interaction.
	AutoTame bool `yaml:"auto_tame"`

	Ground   GroundTuning   `yaml:"ground"`
	Rotation RotationTuning `yaml:"rotation"`
	Flight   FlightTuning   `yaml:"flight"`
	Stamina  StaminaTuning  `yaml:"stamina"`
	FOV      FOVTuning      `yaml:"fov"`
	Music    MusicTuning    `yaml:"music"`
	Melee    MeleeTuning    `yaml:"melee"`
	Ranged   RangedTuning   `yaml:"ranged"`

	// Milestones are named progression tiers. Dragons without a Milestone
	// component, or with an unknown tier, use the neutral tier.
	Milestones map[string]MilestoneTuning `yaml:"milestones"`
}

type GroundTuning struct {
	// ProbeDepth is used for both landing and takeoff detection.
	ProbeDepth     int `yaml:"probe_depth"`
	SampleInterval int `yaml:"sample_interval"`
}

type RotationTuning struct {
	// Threshold is the yaw delta in degrees above which a turn is reported.
	Threshold      float64 `yaml:"threshold"`
	SampleInterval int     `yaml:"sample_interval"`
}

type FlightTuning struct {
	CruiseSpeed        float64 `yaml:"cruise_speed"`
	BoostSpeed         float64 `yaml:"boost_speed"`
	DepletedMultiplier float64 `yaml:"depleted_multiplier"`
	Acceleration       float64 `yaml:"acceleration"`
	ErraticPenalty     float64 `yaml:"erratic_penalty"`

	// Momentum in [0, 1]. Higher values turn slower.
	Momentum      float64 `yaml:"momentum"`
	Damping       float64 `yaml:"damping"`
	SteeringFloor float64 `yaml:"steering_floor"`

	PitchOffset    float64 `yaml:"pitch_offset"`
	VerticalFollow float64 `yaml:"vertical_follow"`
	MinDescent     float64 `yaml:"min_descent"`

	TakeoffImpulse  float64 `yaml:"takeoff_impulse"`
	TakeoffLift     float64 `yaml:"takeoff_lift"`
	TakeoffVelocity float64 `yaml:"takeoff_velocity"`

	// Flight ends once grounded for more than LandGroundedTicks after flying
	// for more than LandFlyingTicks.
	LandGroundedTicks int `yaml:"land_grounded_ticks"`
	LandFlyingTicks   int `yaml:"land_flying_ticks"`

	HoverThreshold      float64 `yaml:"hover_threshold"`
	LevitationInterval  int     `yaml:"levitation_interval"`
	LevitationAmplifier int     `yaml:"levitation_amplifier"`
	LevitationDuration  int     `yaml:"levitation_duration"`
	SlowFallingDuration int     `yaml:"slow_falling_duration"`

	DivePitch float64 `yaml:"dive_pitch"`
	DiveSpeed float64 `yaml:"dive_speed"`
	DiveBoost float64 `yaml:"dive_boost"`

	HistoryCapacity int `yaml:"history_capacity"`
	HistorySample   int `yaml:"history_sample"`
	HistoryEvery    int `yaml:"history_every"`

	// An overage fraction above OverageSnapFraction snaps speed to the cap,
	// smaller overages decay by DecayRate.
	OverageSnapFraction float64 `yaml:"overage_snap_fraction"`
	DecayRate           float64 `yaml:"decay_rate"`

	// RiderSpeed is the movement speed restored to the rider when flight ends.
	RiderSpeed float64 `yaml:"rider_speed"`
	// WalkSpeed is the speed of a ridden dragon on the ground.
	WalkSpeed  float64 `yaml:"walk_speed"`
	SeatHeight float64 `yaml:"seat_height"`
}

type StaminaTuning struct {
	// Max of zero or less means stamina is infinite.
	Max        float64 `yaml:"max"`
	Drain      float64 `yaml:"drain"`
	BoostDrain float64 `yaml:"boost_drain"`
	HoverDrain float64 `yaml:"hover_drain"`
	Recovery   float64 `yaml:"recovery"`
}

type FOVTuning struct {
	Base    float64 `yaml:"base"`
	Forward float64 `yaml:"forward"`
	Back    float64 `yaml:"back"`
	Side    float64 `yaml:"side"`
	Boost   float64 `yaml:"boost"`
	Hover   float64 `yaml:"hover"`
	Step    float64 `yaml:"step"`
}

type MusicTuning struct {
	Enabled  bool     `yaml:"enabled"`
	Interval int      `yaml:"interval"`
	Chance   float64  `yaml:"chance"`
	Tracks   []string `yaml:"tracks"`
}

type MeleeTuning struct {
	Range         float64  `yaml:"range"`
	MinRange      float64  `yaml:"min_range"`
	Cone          float64  `yaml:"cone"`
	Damage        float64  `yaml:"damage"`
	SearchPadding float64  `yaml:"search_padding"`
	AllyTypes     []string `yaml:"ally_types"`
}

type RangedTuning struct {
	Projectiles       int     `yaml:"projectiles"`
	ShotDelay         int     `yaml:"shot_delay"`
	Speed             float64 `yaml:"speed"`
	RaycastDistance   float64 `yaml:"raycast_distance"`
	MinEntityDistance float64 `yaml:"min_entity_distance"`
	UpwardCorrection  float64 `yaml:"upward_correction"`
	MouthOffset       float64 `yaml:"mouth_offset"`
	MouthHeight       float64 `yaml:"mouth_height"`
	// Cooldown is the minimum number of ticks between volleys.
	Cooldown int `yaml:"cooldown"`
}

// MilestoneTuning scales a dragon's flight by progression tier.
type MilestoneTuning struct {
	Speed        float64 `yaml:"speed"`
	Acceleration float64 `yaml:"acceleration"`
	Stamina      float64 `yaml:"stamina"`
}

// NeutralMilestone leaves every parameter unchanged.
var NeutralMilestone = MilestoneTuning{Speed: 1, Acceleration: 1, Stamina: 1}

// DragonType is the entity type reported for dragons.
const DragonType = "wyvern:dragon"

// DefaultTuning returns the tuned defaults.
func DefaultTuning() Tuning {
	return Tuning{
		Ground:   GroundTuning{ProbeDepth: 2, SampleInterval: 1},
		Rotation: RotationTuning{Threshold: 1.0, SampleInterval: 1},
		Flight: FlightTuning{
			CruiseSpeed:         0.9,
			BoostSpeed:          1.6,
			DepletedMultiplier:  0.5,
			Acceleration:        0.2,
			ErraticPenalty:      0.5,
			Momentum:            0.85,
			Damping:             0.9,
			SteeringFloor:       0.3,
			PitchOffset:         0.1,
			VerticalFollow:      0.5,
			MinDescent:          0.15,
			TakeoffImpulse:      0.6,
			TakeoffLift:         0.8,
			TakeoffVelocity:     0.4,
			LandGroundedTicks:   2,
			LandFlyingTicks:     10,
			HoverThreshold:      0.1,
			LevitationInterval:  20,
			LevitationAmplifier: 4,
			LevitationDuration:  10,
			SlowFallingDuration: 1_000_000,
			DivePitch:           45,
			DiveSpeed:           2.0,
			DiveBoost:           1.5,
			HistoryCapacity:     10,
			HistorySample:       4,
			HistoryEvery:        3,
			OverageSnapFraction: 0.25,
			DecayRate:           0.2,
			RiderSpeed:          0.1,
			WalkSpeed:           0.25,
			SeatHeight:          1.6,
		},
		Stamina: StaminaTuning{
			Max:        100,
			Drain:      0.05,
			BoostDrain: 0.5,
			HoverDrain: 0.1,
			Recovery:   0.5,
		},
		FOV: FOVTuning{
			Base:    1.0,
			Forward: 1.15,
			Back:    0.95,
			Side:    1.08,
			Boost:   1.3,
			Hover:   1.0,
			Step:    0.02,
		},
		Music: MusicTuning{
			Enabled:  true,
			Interval: 1200,
			Chance:   0.1,
			Tracks:   []string{"otherside", "pigstep", "cat", "mellohi", "far"},
		},
		Melee: MeleeTuning{
			Range:         5,
			MinRange:      0.5,
			Cone:          0.5,
			Damage:        6,
			SearchPadding: 2,
			AllyTypes:     []string{DragonType},
		},
		Ranged: RangedTuning{
			Projectiles:       3,
			ShotDelay:         4,
			Speed:             2.5,
			RaycastDistance:   64,
			MinEntityDistance: 3,
			UpwardCorrection:  0.05,
			MouthOffset:       2.0,
			MouthHeight:       1.5,
			Cooldown:          20,
		},
		Milestones: map[string]MilestoneTuning{
			"hatchling": {Speed: 0.8, Acceleration: 0.8, Stamina: 0.75},
			"juvenile":  NeutralMilestone,
			"adult":     {Speed: 1.2, Acceleration: 1.15, Stamina: 1.25},
			"elder":     {Speed: 1.4, Acceleration: 1.3, Stamina: 1.5},
		},
	}
}

// LoadTuning reads a YAML tuning file on top of the defaults. An empty path
// returns DefaultTuning.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return ParseTuning(raw)
}

// ParseTuning decodes a YAML tuning document on top of the defaults. The
// document is checked against the tuning schema before decoding.
func ParseTuning(raw []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := validateTuningDocument(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

var tuningSchema = func() *jsonschema.Schema {
	return jsonschema.MustCompileString("tuning.schema.json", tuningSchemaSource)
}()

// validateTuningDocument checks raw YAML against the embedded JSON schema.
func validateTuningDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// The validator expects the shapes encoding/json produces.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return tuningSchema.Validate(v)
}

// Normalize clamps parameters into their usable ranges.
func (t *Tuning) Normalize() {
	t.Ground.ProbeDepth = max(t.Ground.ProbeDepth, 0)
	t.Ground.SampleInterval = max(t.Ground.SampleInterval, 1)
	t.Rotation.Threshold = math.Abs(t.Rotation.Threshold)
	t.Rotation.SampleInterval = max(t.Rotation.SampleInterval, 1)

	f := &t.Flight
	f.Momentum = clamp(f.Momentum, 0, 1)
	f.Damping = clamp(f.Damping, 0, 1)
	f.HistoryCapacity = max(f.HistoryCapacity, 2)
	f.HistorySample = min(max(f.HistorySample, 2), f.HistoryCapacity)
	f.HistoryEvery = max(f.HistoryEvery, 1)
	f.LevitationInterval = max(f.LevitationInterval, 1)

	t.FOV.Step = math.Abs(t.FOV.Step)
	t.Music.Chance = clamp(t.Music.Chance, 0, 1)
	t.Music.Interval = max(t.Music.Interval, 1)

	t.Ranged.Projectiles = max(t.Ranged.Projectiles, 1)
	t.Ranged.ShotDelay = max(t.Ranged.ShotDelay, 0)

	for name, m := range t.Milestones {
		if m.Speed <= 0 {
			m.Speed = 1
		}
		if m.Acceleration <= 0 {
			m.Acceleration = 1
		}
		if m.Stamina <= 0 {
			m.Stamina = 1
		}
		t.Milestones[name] = m
	}
}

// Validate reports parameters that cannot be normalized into a working
// configuration.
func (t *Tuning) Validate() error {
	var errs []error
	if t.Flight.CruiseSpeed <= 0 {
		errs = append(errs, errors.New("flight.cruise_speed must be positive"))
	}
	if t.Flight.BoostSpeed < t.Flight.CruiseSpeed {
		errs = append(errs, errors.New("flight.boost_speed must not be below flight.cruise_speed"))
	}
	if t.Flight.DepletedMultiplier <= 0 || t.Flight.DepletedMultiplier > 1 {
		errs = append(errs, errors.New("flight.depleted_multiplier must be in (0, 1]"))
	}
	if t.Melee.MinRange >= t.Melee.Range {
		errs = append(errs, errors.New("melee.min_range must be below melee.range"))
	}
	if t.Melee.Cone < -1 || t.Melee.Cone > 1 {
		errs = append(errs, errors.New("melee.cone must be in [-1, 1]"))
	}
	if t.FOV.Side > t.FOV.Forward {
		errs = append(errs, errors.New("fov.side must not exceed fov.forward"))
	}
	return errors.Join(errs...)
}

// Milestone returns the named tier, or NeutralMilestone if it is unknown.
func (t *Tuning) Milestone(name string) MilestoneTuning {
	if m, ok := t.Milestones[name]; ok {
		return m
	}
	return NeutralMilestone
}

// MaxStamina returns the stamina cap for a tier, or +Inf if stamina is
// infinite.
func (t *Tuning) MaxStamina(tier MilestoneTuning) float64 {
	if t.Stamina.Max <= 0 {
		return math.Inf(1)
	}
	return t.Stamina.Max * tier.Stamina
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
