package model

// ServiceCategory is the closed set of service domains a request belongs to
// and a provider can be validated for.
type ServiceCategory string

const (
	CategoryTransportDelivery ServiceCategory = "TRANSPORT_DELIVERY"
	CategoryHomeServices      ServiceCategory = "HOME_SERVICES"
	CategoryRepairs           ServiceCategory = "REPAIRS"
	CategoryErrands           ServiceCategory = "ERRANDS"
	CategoryPersonalServices  ServiceCategory = "PERSONAL_SERVICES"
	CategoryEducation         ServiceCategory = "EDUCATION"
)

// Categories lists every category in display order.
var Categories = []ServiceCategory{
	CategoryTransportDelivery,
	CategoryHomeServices,
	CategoryRepairs,
	CategoryErrands,
	CategoryPersonalServices,
	CategoryEducation,
}

var categoryLabels = map[ServiceCategory]string{
	CategoryTransportDelivery: "Transport & Livraison",
	CategoryHomeServices:      "Services à Domicile",
	CategoryRepairs:           "Travaux & Réparations",
	CategoryErrands:           "Courses & Achats",
	CategoryPersonalServices:  "Services Personnels",
	CategoryEducation:         "Éducation & Formation",
}

// Valid reports whether c is one of the known categories.
func (c ServiceCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name of the category, or the raw value
// for unknown categories.
func (c ServiceCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}
