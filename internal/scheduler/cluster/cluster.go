package cluster

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/towersched/towersched/internal/common/schederrors"
	"github.com/towersched/towersched/internal/scheduler/schedule"
)

const assignmentsTable = "assignments"

// Assignment records the cluster a placed job was put in.
type Assignment struct {
	JobId      string
	Cluster    int
	Start      int
	Completion int
	// Whether the job runs across the cut that ends its partition.
	Crossing bool
}

// ClusterDb partitions a finished schedule into time-bucketed clusters and indexes the result
// by job id and by cluster.
type ClusterDb struct {
	db              *memdb.MemDB
	numClusters     int
	partitionHeight int
}

// FromSchedule cuts s into 2*(n/3)+1 partitions of equal height. Walking jobs by start time, each
// job starting at or after the current cut moves on to the next cluster. A job completing by the
// cut joins the current cluster; a job running across it joins the current cluster or the next
// one, alternating with the parity of the cut.
func FromSchedule(s *schedule.Schedule, n int) (*ClusterDb, error) {
	if n < 1 {
		return nil, &schederrors.ErrInvalidArgument{
			Name:    "clusters",
			Value:   n,
			Message: "at least one cluster is required",
		}
	}
	db, err := memdb.NewMemDB(clusterDbSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	partitionHeight := s.Makespan() / (2*(n/3) + 1)
	if partitionHeight < 1 {
		partitionHeight = 1
	}
	clusterDb := &ClusterDb{
		db:              db,
		numClusters:     n,
		partitionHeight: partitionHeight,
	}

	jobs := slices.Clone(s.PlacedJobs())
	slices.SortStableFunc(jobs, func(a, b *schedule.Job) bool {
		startA, _ := a.StartingTime()
		startB, _ := b.StartingTime()
		return startA < startB
	})

	txn := db.Txn(true)
	defer txn.Abort()
	cut := partitionHeight
	cluster := 1
	for _, job := range jobs {
		start, _ := job.StartingTime()
		for start >= cut {
			cluster++
			cut += partitionHeight
		}
		assignment := &Assignment{
			JobId:      job.Id,
			Cluster:    cluster,
			Start:      start,
			Completion: job.CompletionTime(),
		}
		if assignment.Completion > cut {
			assignment.Crossing = true
			assignment.Cluster = cluster + (cut/partitionHeight)%2
		}
		if err := txn.Insert(assignmentsTable, assignment); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	txn.Commit()
	return clusterDb, nil
}

func (c *ClusterDb) PartitionHeight() int {
	return c.partitionHeight
}

// ClusterOf returns the cluster of the job with the given id, or false if there is no such job.
func (c *ClusterDb) ClusterOf(jobId string) (int, bool, error) {
	txn := c.db.Txn(false)
	obj, err := txn.First(assignmentsTable, "id", jobId)
	if err != nil {
		return 0, false, errors.WithStack(err)
	}
	if obj == nil {
		return 0, false, nil
	}
	return obj.(*Assignment).Cluster, true, nil
}

// ByCluster returns the assignments of a cluster ordered by start time.
func (c *ClusterDb) ByCluster(cluster int) ([]*Assignment, error) {
	txn := c.db.Txn(false)
	it, err := txn.Get(assignmentsTable, "cluster", cluster)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var rv []*Assignment
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rv = append(rv, obj.(*Assignment))
	}
	slices.SortStableFunc(rv, func(a, b *Assignment) bool {
		return a.Start < b.Start
	})
	return rv, nil
}

// Clusters returns the non-empty clusters in increasing order.
func (c *ClusterDb) Clusters() ([]int, error) {
	txn := c.db.Txn(false)
	it, err := txn.Get(assignmentsTable, "cluster")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var rv []int
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cluster := obj.(*Assignment).Cluster
		if len(rv) == 0 || rv[len(rv)-1] != cluster {
			rv = append(rv, cluster)
		}
	}
	return rv, nil
}

func clusterDbSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			assignmentsTable: {
				Name: assignmentsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "JobId"},
					},
					"cluster": {
						Name:    "cluster",
						Unique:  false,
						Indexer: &memdb.IntFieldIndex{Field: "Cluster"},
					},
				},
			},
		},
	}
}
