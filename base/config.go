package base

import (
	"os"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

const ConfigPath = "./config.json"

type MQTTTopic struct {
	Topic    string
	Qos      int
	Retained bool
}

type MQTT struct {
	WhiteList    MQTTTopic
	NonWhiteList MQTTTopic
	Broker       string
	Clientid     string
	Username     string
	Password     string
}

type HttpServer struct {
	ServerAddr     string // in the form "host:port"
	HealthCheckURI string // default: /ping
	WhiteListURI   string
}

type LOG struct {
	LogToFile bool
	Dir       string
	Format    string // json, text
	LogLevel  string // panic, fatal, error, warn warning, info, debug, trace
}

type UdpServer struct {
	Host string
}

type DBC struct {
	EmbedDBC bool   // true: use the DBC compiled in with the embed build tag
	DBCPath  string // DBC text file, ISO-8859-1
	DBCExcel string // optional xlsx description, merged after DBCPath
}

type Config struct {
	MQTT            `json:"MQTT"`
	HttpServer      `json:"HttpServer"`
	DBC             `json:"DBC"`
	LOG             `json:"LOG"`
	UdpServer       `json:"UdpServer"`
	DataChanSize    uint
	WorkRoutines    int
	WhiteListFile   string
	EnableWhiteList bool
	Bidirection     bool     // false: drop sent PDUs except SpecialCANs
	SpecialCANs     []uint32 // sent ids kept when Bidirection is false
}

func NewConfig() *Config {
	return &Config{
		MQTT: MQTT{
			WhiteList:    MQTTTopic{Topic: "can/signals"},
			NonWhiteList: MQTTTopic{Topic: "can/raw"},
			Broker:       "127.0.0.1:1883",
			Clientid:     "canparse",
		},
		HttpServer: HttpServer{
			ServerAddr:     ":8080",
			HealthCheckURI: "/ping",
			WhiteListURI:   "/whitelist",
		},
		DBC:           DBC{false, "./can.dbc", ""},
		LOG:           LOG{false, "", "text", "info"},
		UdpServer:     UdpServer{Host: "0.0.0.0:7000"},
		DataChanSize:  10000,
		WorkRoutines:  4,
		WhiteListFile: "./whitelist.json",
	}
}

// LoadConfig reads the JSON file at path on top of NewConfig defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	jData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(jData, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	return cfg, nil
}
