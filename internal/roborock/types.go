package roborock

// Reference carries the per-account endpoint URLs handed out at login.
type Reference struct {
	R string `json:"r"`
	A string `json:"a"`
	M string `json:"m"`
	L string `json:"l"`
}

// RRiot holds the IoT credentials embedded in the login response.
type RRiot struct {
	U string    `json:"u"`
	S string    `json:"s"`
	H string    `json:"h"`
	K string    `json:"k"`
	R Reference `json:"r"`
}

// UserData is the authenticated account state returned by the cloud login.
type UserData struct {
	UID         int64  `json:"uid"`
	TokenType   string `json:"tokentype"`
	Token       string `json:"token"`
	RRUID       string `json:"rruid"`
	Region      string `json:"region"`
	CountryCode string `json:"countrycode"`
	Country     string `json:"country"`
	Nickname    string `json:"nickname"`
	RRIOT       RRiot  `json:"rriot"`
}

type HomeData struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	Products        []HomeDataProduct `json:"products"`
	Devices         []HomeDataDevice  `json:"devices"`
	ReceivedDevices []HomeDataDevice  `json:"receivedDevices"`
}

type HomeDataProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Category string `json:"category"`
	Code     string `json:"code"`
}

type HomeDataDevice struct {
	DUID      string `json:"duid"`
	Name      string `json:"name"`
	LocalKey  string `json:"localKey"`
	ProductID string `json:"productId"`
	Firmware  string `json:"fv"`
	Online    bool   `json:"online"`
}

// Device is the flattened view of a home device plus its product metadata.
type Device struct {
	ID       string
	Name     string
	Model    string
	Firmware string
	LocalKey string
	Online   bool
}
