package core

// Norwegian timber sortiment codes and their display labels.
const (
	SortimentSagtommerGran = "142"
	SortimentSagtommerFuru = "242"
	SortimentMassevirkGran = "102"
	SortimentMassevirkFuru = "202"
	SortimentBio           = "932"
	SortimentPallevirkGran = "131"
	SortimentPallevirkFuru = "231"
)

var sortimentLabels = map[string]string{
	SortimentSagtommerGran: "Sagtømmer Gran",
	SortimentSagtommerFuru: "Sagtømmer Furu",
	SortimentMassevirkGran: "Massevirke Gran",
	SortimentMassevirkFuru: "Massevirke Furu",
	SortimentBio:           "Bio Gran/Furu/Lauv",
	SortimentPallevirkGran: "Pallevirke Gran",
	SortimentPallevirkFuru: "Pallevirke Furu",
}

// SortimentLabel returns the display label for a sortiment code, or "Ukjent"
// for codes outside the known table. Codes are stored as entered either way.
func SortimentLabel(code string) string {
	if label, ok := sortimentLabels[code]; ok {
		return label
	}
	return "Ukjent"
}
