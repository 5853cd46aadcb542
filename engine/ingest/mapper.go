package ingest

import "github.com/google/uuid"

// pointNamespace is the fixed namespace for deriving point ids from Reddit
// post ids. Changing it orphans every previously stored point (their ids
// become unreachable and re-ingestion writes duplicates), so it must stay
// identical across deployments.
var pointNamespace = uuid.NameSpaceURL

// PointID deterministically maps a Reddit post id to the point id stored in
// the vector collection. The same input always yields the same UUID, so
// re-ingesting a post overwrites its existing point.
func PointID(externalID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(externalID)).String()
}
