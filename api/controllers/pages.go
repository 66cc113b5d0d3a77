package controllers

import (
	"net/http"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
)

type cleanPoint struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Schedule  string   `json:"schedule"`
	Materials []string `json:"materials"`
}

type recommendation struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type page struct {
	Title string `json:"title"`
	Intro string `json:"intro"`
	Items any    `json:"items"`
}

var cleanPointsPage = page{
	Title: "Clean points",
	Intro: "Drop-off sites run by the municipality. Bring materials clean, dry and separated.",
	Items: []cleanPoint{
		{Name: "Central clean point", Address: "Av. Principal 1200", Schedule: "Mon-Sat 09:00-18:00", Materials: []string{"PET", "VID", "CAR", "ALU", "PAP"}},
		{Name: "North clean point", Address: "Calle Los Aromos 455", Schedule: "Tue-Sun 10:00-17:00", Materials: []string{"PET", "CAR", "PAP"}},
		{Name: "Coastal clean point", Address: "Costanera 80", Schedule: "Sat-Sun 10:00-14:00", Materials: []string{"VID", "ALU"}},
	},
}

var recommendationsPage = page{
	Title: "Recycling recommendations",
	Intro: "A few habits make every pickup count.",
	Items: []recommendation{
		{Title: "Rinse containers", Body: "Food residue spoils whole batches of paper and cardboard."},
		{Title: "Flatten boxes", Body: "Flattened cardboard takes a fraction of the truck space."},
		{Title: "Separate by material", Body: "Mixed bags are sorted by hand or sent to landfill."},
		{Title: "Remove caps", Body: "Bottle caps are a different plastic than the bottle itself."},
		{Title: "Keep glass whole", Body: "Broken glass is a hazard for the collection crew."},
	},
}

// CleanPoints serves the clean-point locator page.
func CleanPoints() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, cleanPointsPage)
	}
}

func Recommendations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, recommendationsPage)
	}
}
