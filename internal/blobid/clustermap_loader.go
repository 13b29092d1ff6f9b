package blobid

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// clusterMapFile is the on-disk shape of a cluster map file: a flat list of
// partitions, each naming its replica set.
type clusterMapFile struct {
	Partitions []struct {
		ID       string `yaml:"id"`
		Replicas []struct {
			Host       string `yaml:"host"`
			Port       int    `yaml:"port"`
			Datacenter string `yaml:"datacenter"`
		} `yaml:"replicas"`
	} `yaml:"partitions"`
}

// LoadStaticClusterMap reads a partitions/replicas YAML file and builds the
// StaticClusterMap the coordinator resolves blob ids against.
func LoadStaticClusterMap(path string) (*StaticClusterMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blobid: reading cluster map %s: %w", path, err)
	}

	var file clusterMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("blobid: parsing cluster map %s: %w", path, err)
	}

	partitions := make([]Partition, 0, len(file.Partitions))
	for _, p := range file.Partitions {
		replicas := make([]ReplicaId, 0, len(p.Replicas))
		for _, r := range p.Replicas {
			replicas = append(replicas, ReplicaId{Host: r.Host, Port: r.Port, Datacenter: r.Datacenter})
		}
		partitions = append(partitions, Partition{ID: p.ID, Replicas: replicas})
	}

	return NewStaticClusterMap(partitions), nil
}
