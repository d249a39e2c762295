package enrich

// DefaultBuckets returns the bucketing policy for the standard enrichment
// types. Upper bounds are inclusive or exclusive exactly as written in each
// expression; every set ends with a catch-all rule so classification is total.
func DefaultBuckets() map[string]BucketSpec {
	return map[string]BucketSpec{
		"TotalPopulation": {
			Property: "level",
			Rules: []Rule{
				{Category: "LOW", Expr: "value < 1000.0"},
				{Category: "MEDIUM", Expr: "value <= 2000.0"},
				{Category: "HIGH", Expr: "true"},
			},
		},
		"PopulationGrowth": {
			Property: "growth_rate",
			Rules: []Rule{
				{Category: "NEGATIVE", Expr: "value < 0.0"},
				{Category: "LOW", Expr: "value <= 1.0"},
				{Category: "MODERATE", Expr: "value <= 2.0"},
				{Category: "HIGH", Expr: "value <= 3.0"},
				{Category: "VERY_HIGH", Expr: "true"},
			},
		},
		"AgeAverage": {
			Property: "group",
			Rules: []Rule{
				{Category: "0-4", Expr: "value < 5.0"},
				{Category: "5-14", Expr: "value < 15.0"},
				{Category: "15-24", Expr: "value < 25.0"},
				{Category: "25-44", Expr: "value < 45.0"},
				{Category: "45-64", Expr: "value < 65.0"},
				{Category: "65+", Expr: "true"},
			},
		},
		// AgeGroup measurements arrive as a share of total population.
		"AgeGroup": {
			Property: "representation",
			Rules: []Rule{
				{Category: "VERY_LOW", Expr: "value < 0.05"},
				{Category: "LOW", Expr: "value < 0.10"},
				{Category: "MODERATE", Expr: "value < 0.20"},
				{Category: "HIGH", Expr: "value < 0.30"},
				{Category: "DOMINANT", Expr: "true"},
			},
		},
		// WealthIndex measurements arrive min-max normalized to [0,1].
		"WealthIndex": {
			Property: "category",
			Rules: []Rule{
				{Category: "LOW", Expr: "value <= 0.2"},
				{Category: "LOWER_MIDDLE", Expr: "value <= 0.4"},
				{Category: "MIDDLE", Expr: "value <= 0.6"},
				{Category: "UPPER_MIDDLE", Expr: "value <= 0.8"},
				{Category: "HIGH", Expr: "true"},
			},
		},
		// EducationLevel measurements arrive as a share of total population.
		"EducationLevel": {
			Property: "representation",
			Rules: []Rule{
				{Category: "VERY_LOW", Expr: "value < 0.05"},
				{Category: "LOW", Expr: "value < 0.15"},
				{Category: "MODERATE", Expr: "value < 0.30"},
				{Category: "HIGH", Expr: "value < 0.50"},
				{Category: "VERY_HIGH", Expr: "true"},
			},
		},
		// CrimeIndex uses the national-average-100 index scale.
		"CrimeIndex": {
			Property: "category",
			Rules: []Rule{
				{Category: "SAFEST", Expr: "value < 80.0"},
				{Category: "SAFE", Expr: "value <= 119.0"},
				{Category: "MODERATE", Expr: "value <= 199.0"},
				{Category: "UNSAFE", Expr: "value <= 499.0"},
				{Category: "MOST_UNSAFE", Expr: "true"},
			},
		},
		// FastFoodSpendingIndex measurements arrive min-max normalized to [0,1].
		"FastFoodSpendingIndex": {
			Property: "category",
			Rules: []Rule{
				{Category: "OCCASIONAL", Expr: "value <= 0.2"},
				{Category: "LIGHT_SPENDER", Expr: "value <= 0.4"},
				{Category: "REGULAR", Expr: "value <= 0.6"},
				{Category: "ENTHUSIAST", Expr: "value <= 0.8"},
				{Category: "SUPER_FAN", Expr: "true"},
			},
		},
	}
}

// DefaultSet compiles the default bucketing policy.
func DefaultSet() (*Set, error) {
	return NewSet(DefaultBuckets())
}
