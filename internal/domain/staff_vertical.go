package domain

// StaffVertical is a staff specialization with its own capacity ceiling.
type StaffVertical string

const (
	VerticalElectrical            StaffVertical = "ELECTRICAL"
	VerticalPlumbing              StaffVertical = "PLUMBING"
	VerticalHVAC                  StaffVertical = "HVAC"
	VerticalCarpentry             StaffVertical = "CARPENTRY"
	VerticalITSupport             StaffVertical = "IT_SUPPORT"
	VerticalNetworkAdmin          StaffVertical = "NETWORK_ADMIN"
	VerticalSecuritySystems       StaffVertical = "SECURITY_SYSTEMS"
	VerticalHousekeeping          StaffVertical = "HOUSEKEEPING"
	VerticalLandscaping           StaffVertical = "LANDSCAPING"
	VerticalGeneralMaintenance    StaffVertical = "GENERAL_MAINTENANCE"
	VerticalHostelWarden          StaffVertical = "HOSTEL_WARDEN"
	VerticalBlockSupervisor       StaffVertical = "BLOCK_SUPERVISOR"
	VerticalSecurityOfficer       StaffVertical = "SECURITY_OFFICER"
	VerticalAdminStaff            StaffVertical = "ADMIN_STAFF"
	VerticalMaintenanceSupervisor StaffVertical = "MAINTENANCE_SUPERVISOR"
	VerticalAssistantWarden       StaffVertical = "ASSISTANT_WARDEN"
	VerticalChiefWarden           StaffVertical = "CHIEF_WARDEN"
	VerticalAdminOfficer          StaffVertical = "ADMIN_OFFICER"
)

// DefaultMaxActiveTickets applies to staff without a vertical.
const DefaultMaxActiveTickets = 5

type verticalInfo struct {
	maxActiveTickets int
	emergencies      bool
	categories       []TicketCategory
}

var verticalTable = map[StaffVertical]verticalInfo{
	VerticalElectrical:            {8, true, []TicketCategory{CategoryElectricalIssues}},
	VerticalPlumbing:              {8, true, []TicketCategory{CategoryPlumbingWater}},
	VerticalHVAC:                  {8, false, []TicketCategory{CategoryHVAC}},
	VerticalCarpentry:             {6, false, []TicketCategory{CategoryFurnitureFixtures, CategoryStructuralCivil}},
	VerticalITSupport:             {10, false, []TicketCategory{CategoryNetworkInternet, CategoryComputerHardware, CategoryAudioVisualEquipment}},
	VerticalNetworkAdmin:          {12, false, []TicketCategory{CategoryNetworkInternet, CategorySecuritySystems}},
	VerticalSecuritySystems:       {6, false, []TicketCategory{CategorySecuritySystems, CategorySafetySecurity}},
	VerticalHousekeeping:          {5, false, []TicketCategory{CategoryHousekeepingCleanliness}},
	VerticalLandscaping:           {4, false, []TicketCategory{CategoryLandscapingOutdoor}},
	VerticalGeneralMaintenance:    {6, false, []TicketCategory{CategoryGeneral, CategoryStructuralCivil}},
	VerticalHostelWarden:          {12, true, []TicketCategory{CategoryGeneral}},
	VerticalBlockSupervisor:       {10, true, []TicketCategory{CategoryGeneral}},
	VerticalSecurityOfficer:       {5, true, []TicketCategory{CategorySafetySecurity, CategorySecuritySystems}},
	VerticalAdminStaff:            {8, false, []TicketCategory{CategoryGeneral}},
	VerticalMaintenanceSupervisor: {10, false, []TicketCategory{CategoryGeneral}},
	VerticalAssistantWarden:       {12, false, []TicketCategory{CategoryGeneral}},
	VerticalChiefWarden:           {15, false, []TicketCategory{CategoryGeneral}},
	VerticalAdminOfficer:          {15, false, []TicketCategory{CategoryGeneral}},
}

// Valid reports whether v is a known vertical.
func (v StaffVertical) Valid() bool {
	_, ok := verticalTable[v]
	return ok
}

// MaxActiveTickets is the hard ceiling of concurrently open tickets.
func (v StaffVertical) MaxActiveTickets() int {
	if info, ok := verticalTable[v]; ok {
		return info.maxActiveTickets
	}
	return DefaultMaxActiveTickets
}

// CanHandleEmergencies reports whether the vertical takes emergency work.
func (v StaffVertical) CanHandleEmergencies() bool {
	return verticalTable[v].emergencies
}

// CompatibleCategories lists the categories this vertical normally covers.
func (v StaffVertical) CompatibleCategories() []TicketCategory {
	info, ok := verticalTable[v]
	if !ok {
		return []TicketCategory{CategoryGeneral}
	}
	out := make([]TicketCategory, len(info.categories))
	copy(out, info.categories)
	return out
}

// Handles reports whether category is one of the vertical's compatible categories.
func (v StaffVertical) Handles(category TicketCategory) bool {
	for _, c := range verticalTable[v].categories {
		if c == category {
			return true
		}
	}
	return false
}
