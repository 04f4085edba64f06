package models

// Plan is a fixed-size credit bundle. Price is in whole USD; the checkout
// session converts it to cents. The credit amount is fixed at purchase time and
// never re-derived from the payment processor's response.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int      `json:"price"`
	Credits  int      `json:"credits"`
	Features []string `json:"features"`
}

var Plans = []Plan{
	{
		ID:      "basic",
		Name:    "Basic",
		Price:   10,
		Credits: 100,
		Features: []string{
			"100 text generations",
			"50 image generations",
			"Standard support",
			"Access to basic models",
		},
	},
	{
		ID:      "pro",
		Name:    "Pro",
		Price:   20,
		Credits: 500,
		Features: []string{
			"500 text generations",
			"200 image generations",
			"Priority support",
			"Access to pro models",
			"Faster response time",
		},
	},
	{
		ID:      "premium",
		Name:    "Premium",
		Price:   30,
		Credits: 1000,
		Features: []string{
			"1000 text generations",
			"500 image generations",
			"24/7 VIP support",
			"Access to premium models",
			"Dedicated account manager",
		},
	},
}

func FindPlan(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
