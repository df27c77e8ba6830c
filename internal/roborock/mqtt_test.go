package roborock

import "testing"

func testUserData() *UserData {
	return &UserData{
		RRIOT: RRiot{
			U: "user123",
			S: "sess456",
			H: "hmackey",
			K: "key789",
			R: Reference{M: "ssl://mqtt-eu.roborock.com:8883"},
		},
	}
}

func TestMQTTConfigFromUserData(t *testing.T) {
	cfg, err := mqttConfigFromUserData(testUserData())
	if err != nil {
		t.Fatalf("mqttConfigFromUserData: %v", err)
	}
	if cfg.host != "mqtt-eu.roborock.com" || cfg.port != 8883 || !cfg.tls {
		t.Fatalf("broker = %+v", cfg)
	}
	if want := md5Hex([]byte("user123:key789"))[2:10]; cfg.username != want {
		t.Fatalf("username = %q, want %q", cfg.username, want)
	}
	if want := md5Hex([]byte("sess456:key789"))[16:]; cfg.password != want {
		t.Fatalf("password = %q, want %q", cfg.password, want)
	}
}

func TestMQTTConfigRejectsBadURL(t *testing.T) {
	userData := testUserData()
	userData.RRIOT.R.M = ""
	if _, err := mqttConfigFromUserData(userData); err == nil {
		t.Fatal("expected error for missing mqtt url")
	}

	userData.RRIOT.R.M = "ssl://broker-without-port"
	if _, err := mqttConfigFromUserData(userData); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestMQTTTopics(t *testing.T) {
	userData := testUserData()
	user := mqttUsername(userData.RRIOT)
	pub, sub := mqttTopics(userData, "duid42")
	if pub != "rr/m/i/user123/"+user+"/duid42" {
		t.Fatalf("pub topic = %q", pub)
	}
	if sub != "rr/m/o/user123/"+user+"/duid42" {
		t.Fatalf("sub topic = %q", sub)
	}
}
