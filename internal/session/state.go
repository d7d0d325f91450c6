// ABOUTME: Conversation state machine positions as a tagged variant
// ABOUTME: Step enumeration plus the Flow/Category/Track/Topic qualifiers each step requires

package session

import (
	"fmt"
	"strings"
)

// Step is a position in the intake state machine.
type Step int

const (
	StepInitial Step = iota
	StepMainMenu
	StepServicesMenu
	StepServiceSubmenu
	StepVehicleModel
	StepVehicleYear
	StepPartName
	StepTieRodType
	StepLocation
	StepSize
	StepQuantity
	StepPhoto
	StepDescription
	StepWaitingHuman

	// NumSteps is the number of defined steps. Dispatch tables are sized by it.
	NumSteps
)

var stepNames = [NumSteps]string{
	StepInitial:        "INITIAL",
	StepMainMenu:       "MAIN_MENU",
	StepServicesMenu:   "SERVICES_MENU",
	StepServiceSubmenu: "SERVICES_SUBMENU",
	StepVehicleModel:   "COLLECTING_VEHICLE_MODEL",
	StepVehicleYear:    "COLLECTING_VEHICLE_YEAR",
	StepPartName:       "COLLECTING_PART_NAME",
	StepTieRodType:     "COLLECTING_TIE_ROD_TYPE",
	StepLocation:       "COLLECTING_LOCATION",
	StepSize:           "COLLECTING_SIZE",
	StepQuantity:       "COLLECTING_QUANTITY",
	StepPhoto:          "COLLECTING_PHOTO",
	StepDescription:    "COLLECTING_DESCRIPTION",
	StepWaitingHuman:   "WAITING_HUMAN",
}

func (s Step) String() string {
	if s < 0 || s >= NumSteps {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// Flow identifies which main-menu branch is collecting vehicle data.
type Flow string

const (
	FlowNone     Flow = ""
	FlowServices Flow = "services"
	FlowSales    Flow = "sales"
)

// Track identifies the part-detail sequence a service follows.
type Track string

const (
	TrackNone Track = ""
	// TrackStandard asks part, location, quantity, photo.
	TrackStandard Track = "standard"
	// TrackNoLocation asks part, quantity, photo.
	TrackNoLocation Track = "no_location"
	// TrackTieRod asks part, tie-rod type, size, quantity, photo.
	TrackTieRod Track = "tie_rod"
)

// Valid reports whether t is a known non-empty track.
func (t Track) Valid() bool {
	switch t {
	case TrackStandard, TrackNoLocation, TrackTieRod:
		return true
	}
	return false
}

// Topic identifies why a free-text description is being collected.
type Topic string

const (
	TopicNone      Topic = ""
	TopicOther     Topic = "other"
	TopicBudget    Topic = "budget"
	TopicFinancial Topic = "financial"
)

// Valid reports whether t is a known non-empty topic.
func (t Topic) Valid() bool {
	switch t {
	case TopicOther, TopicBudget, TopicFinancial:
		return true
	}
	return false
}

// State is a step together with the sub-flow identity that step needs.
// The zero value is the initial state.
type State struct {
	Step     Step
	Flow     Flow
	Category string
	Track    Track
	Topic    Topic
}

// Initial returns the state every new or reset session starts in.
func Initial() State { return State{Step: StepInitial} }

// At returns an unqualified state for steps that carry no sub-flow.
func At(step Step) State { return State{Step: step} }

// Vehicle returns a vehicle-collection state for the given branch.
func Vehicle(step Step, flow Flow) State { return State{Step: step, Flow: flow} }

// Submenu returns the state for browsing a catalog category.
func Submenu(category string) State { return State{Step: StepServiceSubmenu, Category: category} }

// Collecting returns a part-detail state on the given track.
func Collecting(step Step, track Track) State { return State{Step: step, Track: track} }

// Describing returns the free-text description state for a topic.
func Describing(topic Topic) State { return State{Step: StepDescription, Topic: topic} }

// Valid reports whether the state is a member of the state machine: the step
// is defined and exactly the qualifier it requires is set.
func (s State) Valid() bool {
	switch s.Step {
	case StepInitial, StepMainMenu, StepServicesMenu, StepWaitingHuman:
		return s.Flow == FlowNone && s.Category == "" && s.Track == TrackNone && s.Topic == TopicNone
	case StepVehicleModel, StepVehicleYear:
		return (s.Flow == FlowServices || s.Flow == FlowSales) &&
			s.Category == "" && s.Track == TrackNone && s.Topic == TopicNone
	case StepServiceSubmenu:
		return s.Category != "" && !strings.ContainsAny(s.Category, "/ ") &&
			s.Flow == FlowNone && s.Track == TrackNone && s.Topic == TopicNone
	case StepPartName, StepQuantity, StepPhoto:
		return s.Track.Valid() && s.Flow == FlowNone && s.Category == "" && s.Topic == TopicNone
	case StepLocation:
		return s.Track == TrackStandard && s.Flow == FlowNone && s.Category == "" && s.Topic == TopicNone
	case StepTieRodType, StepSize:
		return s.Track == TrackTieRod && s.Flow == FlowNone && s.Category == "" && s.Topic == TopicNone
	case StepDescription:
		return s.Topic.Valid() && s.Flow == FlowNone && s.Category == "" && s.Track == TrackNone
	}
	return false
}

// Terminal reports whether the conversation has been handed to a human.
func (s State) Terminal() bool { return s.Step == StepWaitingHuman }

// qualifier returns the sub-flow tag, or "" for unqualified steps.
func (s State) qualifier() string {
	switch {
	case s.Flow != FlowNone:
		return string(s.Flow)
	case s.Category != "":
		return s.Category
	case s.Track != TrackNone:
		return string(s.Track)
	case s.Topic != TopicNone:
		return string(s.Topic)
	}
	return ""
}

// String encodes the state as STEP or STEP/qualifier. ParseState is its inverse.
func (s State) String() string {
	q := s.qualifier()
	if q == "" {
		return s.Step.String()
	}
	return s.Step.String() + "/" + q
}

// Name is the human-facing state name used in logs and the ops API. Submenus
// render per category (SERVICES_SPRINGS), the sales entry step is SALES_FLOW
// and the financial description step is FINANCIAL. Other steps drop their
// qualifier.
func (s State) Name() string {
	switch {
	case s.Step == StepServiceSubmenu && s.Category != "":
		return "SERVICES_" + strings.ToUpper(s.Category)
	case s.Step == StepVehicleModel && s.Flow == FlowSales:
		return "SALES_FLOW"
	case s.Step == StepDescription && s.Topic == TopicFinancial:
		return "FINANCIAL"
	}
	return s.Step.String()
}

// ParseState decodes a string produced by State.String. It fails on unknown
// steps and on qualifiers that do not fit the step.
func ParseState(raw string) (State, error) {
	name, qual, _ := strings.Cut(raw, "/")

	step := Step(-1)
	for i, n := range stepNames {
		if n == name {
			step = Step(i)
			break
		}
	}
	if step < 0 {
		return State{}, fmt.Errorf("unknown step %q", name)
	}

	st := State{Step: step}
	if qual != "" {
		switch step {
		case StepVehicleModel, StepVehicleYear:
			st.Flow = Flow(qual)
		case StepServiceSubmenu:
			st.Category = qual
		case StepPartName, StepTieRodType, StepLocation, StepSize, StepQuantity, StepPhoto:
			st.Track = Track(qual)
		case StepDescription:
			st.Topic = Topic(qual)
		default:
			return State{}, fmt.Errorf("step %s takes no qualifier, got %q", name, qual)
		}
	}

	if !st.Valid() {
		return State{}, fmt.Errorf("invalid state %q", raw)
	}
	return st, nil
}

// MarshalText encodes the state with String.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state with ParseState.
func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
