// Package etc loads the replication core's JSON configuration file, the
// same shape and loading convention as the teacher's
// master/etc.ParseMasterConf and replica/etc.ParseReplicaConf.
package etc

import (
	"encoding/json"
	"io/ioutil"

	log "github.com/sirupsen/logrus"
)

type ReplConf struct {
	// InstanceNum bounds StoreId/DstStoreId: both must be < InstanceNum.
	InstanceNum uint32 `json:"instance_num"`

	ListenAddr  string `json:"listen_addr"`
	AdminAddr   string `json:"admin_addr"`
	MetricsAddr string `json:"metrics_addr"`
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`

	FullSyncPoolSize int `json:"full_sync_pool_size"`
	IncrPushPoolSize int `json:"incr_push_pool_size"`

	// SchedIntervalMs is how often the push scheduler sweeps pushStatus
	// looking for entries that are ready to run.
	SchedIntervalMs int `json:"sched_interval_ms"`

	Graphite GraphiteConf `json:"graphite"`
}

type GraphiteConf struct {
	Addr     string `json:"addr"`
	Prefix   string `json:"prefix"`
	Interval int    `json:"interval_sec"`
}

func Default() ReplConf {
	return ReplConf{
		InstanceNum:      10,
		ListenAddr:       "0.0.0.0:61001",
		AdminAddr:        "0.0.0.0:61002",
		MetricsAddr:      "0.0.0.0:61003",
		DataDir:          "./data",
		LogLevel:         "info",
		FullSyncPoolSize: 4,
		IncrPushPoolSize: 32,
		SchedIntervalMs:  100,
	}
}

func ParseReplConf(confPath string) ReplConf {
	conf := Default()
	confBytes, err := ioutil.ReadFile(confPath)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	if err := json.Unmarshal(confBytes, &conf); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}
	return conf
}
