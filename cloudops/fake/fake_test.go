package fake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops"
	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops/fake"
)

func TestFactorySeedAndCall(t *testing.T) {
	f := fake.New()
	f.Seed("compute", "list_instances", []cloudops.Record{
		map[string]interface{}{"id": "i-1", "state": "RUNNING"},
		map[string]interface{}{"id": "i-2", "state": "STOPPED"},
	}, nil)

	client, err := f.Get(context.Background(), "compute", &cloudops.Config{Tenancy: "ocid1.tenancy.oc1..x"})
	require.NoError(t, err)

	records, nextPage, err := client.Call(context.Background(), "list_instances", map[string]interface{}{"compartment_id": "c1"})
	require.NoError(t, err)
	require.Empty(t, nextPage)
	require.Len(t, records, 2)

	calls := f.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "compute", calls[0].Service)
	require.Equal(t, "list_instances", calls[0].Operation)
	require.Equal(t, "c1", calls[0].Params["compartment_id"])
}

func TestFactoryUnseededOperationErrors(t *testing.T) {
	f := fake.New()
	client, err := f.Get(context.Background(), "compute", &cloudops.Config{})
	require.NoError(t, err)

	_, _, err = client.Call(context.Background(), "list_instances", nil)
	require.Error(t, err)
}

func TestFactorySeededError(t *testing.T) {
	f := fake.New()
	boom := context.DeadlineExceeded
	f.Seed("storage", "list_buckets", nil, boom)

	client, err := f.Get(context.Background(), "storage", &cloudops.Config{})
	require.NoError(t, err)

	_, _, err = client.Call(context.Background(), "list_buckets", nil)
	require.ErrorIs(t, err, boom)
}

func TestAllowedServicesTracksSeededServices(t *testing.T) {
	f := fake.New()
	require.Empty(t, f.AllowedServices())

	f.Seed("compute", "list_instances", nil, nil)
	f.Seed("storage", "list_buckets", nil, nil)
	f.Seed("compute", "get_instance", nil, nil)

	require.ElementsMatch(t, []string{"compute", "storage"}, f.AllowedServices())
}
