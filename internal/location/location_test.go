package location

import "testing"

func TestBest(t *testing.T) {
	gps := &Fix{Provider: "gps", Lat: 40.4168, Lng: -3.7038, Accuracy: 8}
	network := &Fix{Provider: "network", Lat: 40.4170, Lng: -3.7040, Accuracy: 40}
	passive := &Fix{Provider: "passive", Lat: 40.4, Lng: -3.7, Accuracy: 8}

	tests := []struct {
		name  string
		fixes []*Fix
		want  *Fix
	}{
		{"none", nil, nil},
		{"all nil", []*Fix{nil, nil}, nil},
		{"single", []*Fix{network}, network},
		{"smallest accuracy wins", []*Fix{network, gps}, gps},
		{"nil skipped", []*Fix{nil, network, nil}, network},
		{"tie keeps first", []*Fix{gps, passive}, gps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Best(tt.fixes); got != tt.want {
				t.Errorf("Best = %+v, want %+v", got, tt.want)
			}
		})
	}
}
