package models

// Dish is the read-only nutrition record from the dish master database.
type Dish struct {
	RKCode      string       `json:"rkeeper_code"`
	Name        string       `json:"name"`
	WeightG     int          `json:"weight_g"`
	Calories    int          `json:"calories"`
	Protein     float64      `json:"protein"`
	Fat         float64      `json:"fat"`
	Carbs       float64      `json:"carbs"`
	Ingredients []string     `json:"ingredients"`
	ExtraLabels []ExtraLabel `json:"extra_labels"`
}

// ExtraLabel is a supplementary product (sauce, side) printed alongside the
// main label of its parent dish.
type ExtraLabel struct {
	Name     string  `json:"extra_dish_name"`
	WeightG  int     `json:"extra_dish_weight_g"`
	Calories int     `json:"extra_dish_calories"`
	Protein  float64 `json:"extra_dish_protein"`
	Fat      float64 `json:"extra_dish_fat"`
	Carbs    float64 `json:"extra_dish_carbs"`
}

// FallbackDish builds a zero-valued record for products missing from the dish
// master, so a label can still be printed from what the POS event carried.
func FallbackDish(rkCode, name string) *Dish {
	return &Dish{
		RKCode:      rkCode,
		Name:        name,
		Ingredients: []string{},
		ExtraLabels: []ExtraLabel{},
	}
}
