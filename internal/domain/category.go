package domain

// TicketCategory enumerates the built-in issue categories.
type TicketCategory string

const (
	CategoryElectricalIssues        TicketCategory = "ELECTRICAL_ISSUES"
	CategoryPlumbingWater           TicketCategory = "PLUMBING_WATER"
	CategoryHVAC                    TicketCategory = "HVAC"
	CategoryStructuralCivil         TicketCategory = "STRUCTURAL_CIVIL"
	CategoryFurnitureFixtures       TicketCategory = "FURNITURE_FIXTURES"
	CategoryNetworkInternet         TicketCategory = "NETWORK_INTERNET"
	CategoryComputerHardware        TicketCategory = "COMPUTER_HARDWARE"
	CategoryAudioVisualEquipment    TicketCategory = "AUDIO_VISUAL_EQUIPMENT"
	CategorySecuritySystems         TicketCategory = "SECURITY_SYSTEMS"
	CategoryHousekeepingCleanliness TicketCategory = "HOUSEKEEPING_CLEANLINESS"
	CategorySafetySecurity          TicketCategory = "SAFETY_SECURITY"
	CategoryLandscapingOutdoor      TicketCategory = "LANDSCAPING_OUTDOOR"
	CategoryGeneral                 TicketCategory = "GENERAL"
)

type categoryInfo struct {
	displayName     string
	defaultPriority TicketPriority
}

var categoryTable = map[TicketCategory]categoryInfo{
	CategoryElectricalIssues:        {"Electrical Issues", TicketPriorityHigh},
	CategoryPlumbingWater:           {"Plumbing & Water", TicketPriorityHigh},
	CategoryHVAC:                    {"HVAC", TicketPriorityMedium},
	CategoryStructuralCivil:         {"Structural & Civil", TicketPriorityMedium},
	CategoryFurnitureFixtures:       {"Furniture & Fixtures", TicketPriorityLow},
	CategoryNetworkInternet:         {"Network & Internet", TicketPriorityHigh},
	CategoryComputerHardware:        {"Computer & Hardware", TicketPriorityMedium},
	CategoryAudioVisualEquipment:    {"Audio/Visual Equipment", TicketPriorityMedium},
	CategorySecuritySystems:         {"Security Systems", TicketPriorityHigh},
	CategoryHousekeepingCleanliness: {"Housekeeping & Cleanliness", TicketPriorityLow},
	CategorySafetySecurity:          {"Safety & Security", TicketPriorityEmergency},
	CategoryLandscapingOutdoor:      {"Landscaping & Outdoor", TicketPriorityLow},
	CategoryGeneral:                 {"General", TicketPriorityLow},
}

// Valid reports whether c is a built-in category.
func (c TicketCategory) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// DisplayName returns a human readable label.
func (c TicketCategory) DisplayName() string {
	if info, ok := categoryTable[c]; ok {
		return info.displayName
	}
	return string(c)
}

// DefaultPriority is applied when a ticket is filed without an explicit priority.
func (c TicketCategory) DefaultPriority() TicketPriority {
	if info, ok := categoryTable[c]; ok {
		return info.defaultPriority
	}
	return TicketPriorityMedium
}
