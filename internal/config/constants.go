package config

import "time"

const (
	// Outbound calls
	DefaultOutboundTimeout = 10 * time.Second
	DefaultLLMTimeout      = 60 * time.Second
	MaxMediaBytes          = 10 << 20
	MaxUploadBytes         = 16 << 20

	// Inbound messaging
	DefaultDedupeTTL       = 24 * time.Hour
	DefaultCountryCode     = "+91"
	PlaceholderLocationTag = "Reported via messaging channel"

	// LLM sampling temperatures
	StructureTemperature = 0.3
	ClassifyTemperature  = 0.1
	PriorityTemperature  = 0.1
	VerifyTemperature    = 0.2
	VisionTemperature    = 0.2

	// Auth
	BcryptCost         = 12
	MinPasswordLength  = 6
	DefaultJWTTTL      = 72 * time.Hour
	JWTIssuer          = "grievance-service"
	DefaultServerPort  = "5000"
	DefaultSQLitePath  = "grievances.db"
	DefaultUploadDir   = "uploads"
	DefaultLLMModel    = "gemini-2.0-flash"
	DefaultVisionModel = "gemini-2.0-flash"
)

// Transition policies for status updates.
const (
	TransitionOpen    = "open"
	TransitionForward = "forward"
)

// PriorityRanks orders priorities for department listings: lower rank sorts first.
var PriorityRanks = map[string]int{
	"high":   0,
	"medium": 1,
	"low":    2,
}
