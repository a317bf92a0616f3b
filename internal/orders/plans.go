package orders

// Bundle is one purchasable data bundle. Prices are naira. Price is
// what the wallet is charged; ResellerPrice and APIPrice are the
// discounted tiers surfaced on the pricing page.
type Bundle struct {
	ID            int    `json:"id"`
	Size          string `json:"size"`
	Duration      string `json:"duration"`
	Price         int64  `json:"price"`
	ResellerPrice int64  `json:"resellerPrice"`
	APIPrice      int64  `json:"apiPrice"`
}

// Network is a mobile carrier with its upstream provider id and data
// bundle list.
type Network struct {
	ID   int      `json:"id"`
	Data []Bundle `json:"data"`
}

// Carrier keys as they appear in order payloads and the catalog.
const (
	NetworkMTN    = "mtn"
	NetworkGlo    = "glo"
	NetworkAirtel = "airtel"
)

// catalog holds the upstream provider's current offering. Bundle ids
// and provider ids are assigned by the reseller platform.
var catalog = map[string]Network{
	NetworkAirtel: {
		ID: 3,
		Data: []Bundle{
			{ID: 13, Size: "500MB", Duration: "7 days", Price: 500, ResellerPrice: 495, APIPrice: 490},
			{ID: 14, Size: "1.5GB", Duration: "2 days", Price: 650, ResellerPrice: 600, APIPrice: 599},
			{ID: 15, Size: "1GB", Duration: "7 days", Price: 800, ResellerPrice: 790, APIPrice: 785},
			{ID: 17, Size: "2GB", Duration: "30 days", Price: 1500, ResellerPrice: 1485, APIPrice: 1470},
			{ID: 18, Size: "3GB", Duration: "30 days", Price: 2100, ResellerPrice: 1999, APIPrice: 1960},
			{ID: 19, Size: "4GB", Duration: "30 days", Price: 2650, ResellerPrice: 2599, APIPrice: 2570},
			{ID: 20, Size: "8GB", Duration: "30 days", Price: 3200, ResellerPrice: 3100, APIPrice: 2999},
			{ID: 21, Size: "10GB", Duration: "30 days", Price: 4200, ResellerPrice: 4099, APIPrice: 4070},
		},
	},
	NetworkGlo: {
		ID: 2,
		Data: []Bundle{
			{ID: 42, Size: "200MB", Duration: "1 day", Price: 100, ResellerPrice: 95, APIPrice: 89},
			{ID: 35, Size: "500MB", Duration: "30 days", Price: 250, ResellerPrice: 230, APIPrice: 225},
			{ID: 36, Size: "1GB", Duration: "30 days", Price: 450, ResellerPrice: 430, APIPrice: 425},
			{ID: 40, Size: "2GB", Duration: "30 days", Price: 900, ResellerPrice: 850, APIPrice: 840},
			{ID: 38, Size: "5GB", Duration: "30 days", Price: 2250, ResellerPrice: 2199, APIPrice: 2190},
			{ID: 39, Size: "10GB", Duration: "30 days", Price: 4500, ResellerPrice: 4399, APIPrice: 4390},
		},
	},
	NetworkMTN: {
		ID: 1,
		Data: []Bundle{
			{ID: 43, Size: "110MB", Duration: "1 day", Price: 100, ResellerPrice: 99, APIPrice: 99},
			{ID: 44, Size: "500MB", Duration: "30 days", Price: 400, ResellerPrice: 390, APIPrice: 385},
			{ID: 46, Size: "1GB", Duration: "30 days", Price: 570, ResellerPrice: 560, APIPrice: 560},
			{ID: 48, Size: "2GB", Duration: "30 days", Price: 1250, ResellerPrice: 1199, APIPrice: 1150},
			{ID: 49, Size: "3GB", Duration: "30 days", Price: 1500, ResellerPrice: 1399, APIPrice: 1370},
			{ID: 50, Size: "5GB", Duration: "30 days", Price: 2300, ResellerPrice: 2099, APIPrice: 2050},
			{ID: 57, Size: "36GB", Duration: "30 days", Price: 11000, ResellerPrice: 10900, APIPrice: 10800},
			{ID: 51, Size: "75GB", Duration: "30 days", Price: 18500, ResellerPrice: 17999, APIPrice: 17990},
		},
	},
}

// Catalog returns the full plan listing keyed by carrier.
func Catalog() map[string]Network {
	return catalog
}

// NetworkByKey resolves a carrier by its catalog key.
func NetworkByKey(key string) (Network, bool) {
	n, ok := catalog[key]
	return n, ok
}

// FindBundle resolves a data bundle within a carrier's offering.
func FindBundle(network string, bundleID int) (Network, Bundle, bool) {
	n, ok := catalog[network]
	if !ok {
		return Network{}, Bundle{}, false
	}
	for _, b := range n.Data {
		if b.ID == bundleID {
			return n, b, true
		}
	}
	return n, Bundle{}, false
}
