package supervisor

import "github.com/kbenson/ride-harness/pkg/forwarding"

// ControllerConfig is the subset of controller connection settings
// forwarded into application ModuleSpecs that need to reach the CA
// directly (§4.6: "the controller config").
type ControllerConfig struct {
	Dialect string
	Host    string
	Port    int
}

// ServerSpecs builds the server role's module configuration of §4.6: a
// RideD sink (address pool, ntrees, tree algorithm/heuristic, max
// retries, server DPID, controller config), a seismic alert
// aggregator, and — when RideC is enabled — a RideC application with
// the data-path tuples and publisher source-port list.
func ServerSpecs(serverDpid string, pool []forwarding.McastAddress, ntrees int, treeAlgo, heuristic string, maxRetries int, cc ControllerConfig, withRideC bool, dataPathTuples [][2]string, publisherPorts []int) map[Section][]ModuleSpec {
	specs := map[Section][]ModuleSpec{
		SectionApplications: {
			{ClassPath: "ride.rided.RideD", Name: "rided", Kwargs: map[string]interface{}{
				"mcast_pool":      pool,
				"ntrees":          ntrees,
				"tree_algorithm":  treeAlgo,
				"heuristic":       heuristic,
				"max_retries":     maxRetries,
				"server_dpid":     serverDpid,
				"controller_host": cc.Host,
				"controller_port": cc.Port,
				"controller_dialect": cc.Dialect,
			}},
		},
		SectionEventSinks: {
			{ClassPath: "ride.alerting.SeismicAlertAggregator", Name: "alert-aggregator", Kwargs: map[string]interface{}{}},
		},
	}
	if withRideC {
		specs[SectionApplications] = append(specs[SectionApplications], ModuleSpec{
			ClassPath: "ride.ridec.RideC",
			Name:      "ridec",
			Kwargs: map[string]interface{}{
				"data_path_tuples": dataPathTuples,
				"publisher_ports":  publisherPorts,
			},
		})
	}
	return specs
}

// CloudSpecs builds the cloud role's module configuration of §4.6: a
// unicast RideD sink (no address pool), an alert aggregator writing to
// a separate output file, and a UDP echo server on the probe port. The
// cloud never runs RideC.
func CloudSpecs(cloudDpid string, echoPort int, cc ControllerConfig) map[Section][]ModuleSpec {
	return map[Section][]ModuleSpec{
		SectionApplications: {
			{ClassPath: "ride.rided.RideD", Name: "rided-unicast", Kwargs: map[string]interface{}{
				"ntrees":             0,
				"server_dpid":        cloudDpid,
				"controller_host":    cc.Host,
				"controller_port":    cc.Port,
				"controller_dialect": cc.Dialect,
			}},
			{ClassPath: "ride.echo.UDPEchoServer", Name: "echo", Kwargs: map[string]interface{}{
				"port": echoPort,
			}},
		},
		SectionEventSinks: {
			{ClassPath: "ride.alerting.SeismicAlertAggregator", Name: "cloud-alert-aggregator", Kwargs: map[string]interface{}{
				"output_file": "cloud_alerts.log",
			}},
		},
	}
}

// PublisherSpecs builds a publisher host's module configuration of
// §4.6: a seismic sensor on a fixed sample interval plus a congestion
// sensor, each with its own CoAP remote sink (seismic confirmable,
// congestion non-confirmable).
func PublisherSpecs(sampleIntervalSeconds, congestionIntervalSeconds float64, seismicPort, congestionPort int, edgeIP string) map[Section][]ModuleSpec {
	return map[Section][]ModuleSpec{
		SectionSensors: {
			{ClassPath: "ride.sensors.SeismicSensor", Name: "seismic", Kwargs: map[string]interface{}{
				"sample_interval": sampleIntervalSeconds,
			}},
			{ClassPath: "ride.sensors.CongestionSensor", Name: "congestion", Kwargs: map[string]interface{}{
				"sample_interval": congestionIntervalSeconds,
			}},
		},
		SectionNetworks: {
			{ClassPath: "ride.coap.CoapRemoteSink", Name: "seismic-sink", Kwargs: map[string]interface{}{
				"host": edgeIP, "port": seismicPort, "confirmable": true,
			}},
			{ClassPath: "ride.coap.CoapRemoteSink", Name: "congestion-sink", Kwargs: map[string]interface{}{
				"host": edgeIP, "port": congestionPort, "confirmable": false,
			}},
		},
	}
}

// SubscriberSpecs builds a subscriber host's module configuration of
// §4.6: a CoAP server and a seismic alert subscriber pointed at the
// edge (and, when non-empty, cloud) broker IPs.
func SubscriberSpecs(coapPort int, edgeIP, cloudIP string) map[Section][]ModuleSpec {
	brokers := []string{edgeIP}
	if cloudIP != "" {
		brokers = append(brokers, cloudIP)
	}
	return map[Section][]ModuleSpec{
		SectionNetworks: {
			{ClassPath: "ride.coap.CoapServer", Name: "coap-server", Kwargs: map[string]interface{}{
				"port": coapPort,
			}},
		},
		SectionApplications: {
			{ClassPath: "ride.alerting.SeismicAlertSubscriber", Name: "alert-subscriber", Kwargs: map[string]interface{}{
				"brokers": brokers,
			}},
		},
	}
}

// MergeSpecs concatenates per-role specs for a host that is both
// publisher and subscriber (§4.6: "A single host may be both publisher
// and subscriber; configs are concatenated").
func MergeSpecs(all ...map[Section][]ModuleSpec) map[Section][]ModuleSpec {
	merged := make(map[Section][]ModuleSpec)
	for _, specs := range all {
		for section, list := range specs {
			merged[section] = append(merged[section], list...)
		}
	}
	return merged
}
