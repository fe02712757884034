package product

import "testing"

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		discount float64
		want     float64
	}{
		{"no discount", 50, 0, 50},
		{"half off", 50, 50, 25},
		{"needs rounding", 99.99, 33, 66.99},
		{"full discount", 10, 100, 0},
		{"third off", 30, 10, 27},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: tt.price, DiscountPercent: tt.discount}
			if got := p.EffectivePrice(); got != tt.want {
				t.Fatalf("EffectivePrice(%v, %v) = %v, want %v", tt.price, tt.discount, got, tt.want)
			}
		})
	}
}
