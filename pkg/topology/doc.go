// Package topology projects the registry into graph views: team and
// solution topologies with layer classification, service neighborhoods,
// and ecosystem statistics.
package topology
