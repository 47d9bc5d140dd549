package projection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/protofetch/internal/deferred"
	"github.com/hanpama/protofetch/internal/eventbus"
	"github.com/hanpama/protofetch/internal/events"
	language "github.com/hanpama/protofetch/internal/language"
	"github.com/hanpama/protofetch/internal/projection"
	"github.com/hanpama/protofetch/internal/protoreg"
	"github.com/hanpama/protofetch/internal/prototest"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fixture struct {
	md        protoreflect.MessageDescriptor
	projector *projection.Projector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fd := prototest.UserFile(t)
	reg, err := protoreg.FromDescriptors(fd)
	require.NoError(t, err)
	md := fd.Messages().ByName("User")
	return fixture{md: md, projector: projection.New(reg, md)}
}

func (f fixture) project(t *testing.T, query string, vars map[string]any, source any) *projection.Result {
	t.Helper()
	return f.projectCtx(context.Background(), t, query, "", vars, source)
}

func (f fixture) projectCtx(ctx context.Context, t *testing.T, query, operationName string, vars map[string]any, source any) *projection.Result {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return f.projector.Project(ctx, doc, operationName, vars, source)
}

func (f fixture) newUser() *dynamicpb.Message { return dynamicpb.NewMessage(f.md) }

func fieldOf(m protoreflect.Message, name string) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func errorMessages(res *projection.Result) []string {
	var out []string
	for _, e := range res.Errors {
		out = append(out, e.Message)
	}
	return out
}

func TestProjectMessageSource(t *testing.T) {
	f := newFixture(t)
	msg := f.newUser()
	prototest.Set(msg, "user_id", protoreflect.ValueOfInt64(42))
	prototest.Set(msg, "status", prototest.EnumValue(f.md, "ACTIVE"))
	tags := msg.Mutable(fieldOf(msg, "tags")).List()
	tags.Append(prototest.EnumValue(f.md, "ACTIVE"))
	tags.Append(prototest.EnumValue(f.md, "INACTIVE"))
	address := msg.Mutable(fieldOf(msg, "address")).Message()
	address.Set(fieldOf(address, "city"), protoreflect.ValueOfString("Seoul"))
	amount := msg.Mutable(fieldOf(msg, "amount")).Message()
	amount.Set(fieldOf(amount, "value"), protoreflect.ValueOfInt64(100))
	prototest.Set(msg, "avatar", protoreflect.ValueOfBytes([]byte("hi")))
	scores := msg.Mutable(fieldOf(msg, "scores")).Map()
	scores.Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfInt32(1))

	res := f.project(t, `{
		userId status tags
		address { city lines }
		amount avatar scores nickname
		manager { userId }
	}`, nil, msg)

	require.Empty(t, res.Errors)
	want := map[string]any{
		"userId":   int64(42),
		"status":   "ACTIVE",
		"tags":     []any{"ACTIVE", "INACTIVE"},
		"address":  map[string]any{"city": "Seoul", "lines": []any{}},
		"amount":   int64(100),
		"avatar":   "aGk=",
		"scores":   map[string]any{"a": int32(1)},
		"nickname": nil,
		"manager":  nil,
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectMapSource(t *testing.T) {
	f := newFixture(t)
	source := map[string]any{
		"userId":  42,
		"status":  "ACTIVE",
		"user_id": 7,
		"address": map[string]any{"city": "Busan", "lines": []string{"1", "2"}},
	}

	res := f.project(t, `{ userId status address { city lines } }`, nil, source)

	require.Empty(t, res.Errors)
	want := map[string]any{
		"userId":  42,
		"status":  "ACTIVE",
		"address": map[string]any{"city": "Busan", "lines": []any{"1", "2"}},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

type addressBean struct{ city string }

func (a *addressBean) GetCity() string        { return a.city }
func (a *addressBean) GetLinesList() []string { return []string{a.city + " 1"} }

type userBean struct {
	id      int64
	address any
}

func (u *userBean) GetUserId() int64                   { return u.id }
func (u *userBean) GetStatus() protoreflect.EnumNumber { return 2 }
func (u *userBean) GetTagsList() []string              { return []string{"ACTIVE"} }
func (u *userBean) GetAddress() any                    { return u.address }
func (u *userBean) GetAmount() *wrapperspb.Int64Value  { return wrapperspb.Int64(5) }
func (u *userBean) GetNickname() (string, error)       { return "", errors.New("nickname unavailable") }
func (u *userBean) GetPreviousAddressesList() []*addressBean {
	return []*addressBean{{city: "Daegu"}, {city: "Incheon"}}
}

type emptyBean struct{}

func TestProjectObjectSource(t *testing.T) {
	f := newFixture(t)
	bean := &userBean{id: 9, address: &addressBean{city: "Jeju"}}

	res := f.project(t, `{
		userId status tags amount nickname
		address { city lines }
		previousAddresses { city }
	}`, nil, bean)

	want := map[string]any{
		"userId":   int64(9),
		"status":   "INACTIVE",
		"tags":     []any{"ACTIVE"},
		"amount":   int64(5),
		"nickname": nil,
		"address":  map[string]any{"city": "Jeju", "lines": []any{"Jeju 1"}},
		"previousAddresses": []any{
			map[string]any{"city": "Daegu"},
			map[string]any{"city": "Incheon"},
		},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.Errors, 1)
	require.Equal(t, projection.Path{"nickname"}, res.Errors[0].Path)
	require.Contains(t, res.Errors[0].Message, "nickname unavailable")
}

func TestProjectMissingAccessor(t *testing.T) {
	f := newFixture(t)

	res := f.project(t, `{ userId }`, nil, &emptyBean{})

	require.Equal(t, map[string]any{"userId": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, projection.Path{"userId"}, res.Errors[0].Path)
	require.Contains(t, res.Errors[0].Message, "getUserId")
}

func TestProjectSelections(t *testing.T) {
	f := newFixture(t)
	source := map[string]any{
		"userId":   1,
		"nickname": "kim",
		"status":   "ACTIVE",
		"tags":     []any{"ACTIVE"},
		"address":  map[string]any{"city": "Ulsan"},
	}
	query := `
		query Q($withStatus: Boolean!) {
			id: userId
			...Extra
			... on User { address { city } }
			... on Address { city }
			status @include(if: $withStatus)
			tags @skip(if: true)
			__typename
			address { kind: __typename }
		}
		fragment Extra on User { nickname }
	`

	res := f.project(t, query, map[string]any{"withStatus": false}, source)

	require.Empty(t, res.Errors)
	want := map[string]any{
		"id":         1,
		"nickname":   "kim",
		"address":    map[string]any{"city": "Ulsan", "kind": "Address"},
		"__typename": "User",
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	res = f.project(t, query, map[string]any{"withStatus": true}, source)
	require.Equal(t, "ACTIVE", res.Data.(map[string]any)["status"])
}

func TestProjectFieldErrors(t *testing.T) {
	f := newFixture(t)

	res := f.project(t, `{ nope userId status }`, nil, map[string]any{"userId": 1})

	require.Equal(t, map[string]any{"userId": 1, "status": nil}, res.Data)
	require.Equal(t, []string{
		"Cannot query field 'nope' on type 'User'",
		"Cannot return null for non-nullable field status",
	}, errorMessages(res))
	require.Equal(t, projection.Path{"status"}, res.Errors[1].Path)
}

func TestProjectListElementPaths(t *testing.T) {
	f := newFixture(t)
	source := map[string]any{
		"previousAddresses": []any{
			map[string]any{"city": "A"},
			map[string]any{},
		},
	}

	res := f.project(t, `{ previousAddresses { city } }`, nil, source)

	require.Len(t, res.Errors, 1)
	require.Equal(t, projection.Path{"previousAddresses", 1, "city"}, res.Errors[0].Path)
	require.Equal(t, "Cannot return null for non-nullable field previousAddresses[1].city", res.Errors[0].Message)
}

func TestProjectDeferredSource(t *testing.T) {
	f := newFixture(t)
	p := deferred.NewPromise[any]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Resolve(map[string]any{"userId": 3, "status": "INACTIVE"})
	}()

	res := f.project(t, `{ userId status }`, nil, p.Future())

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"userId": 3, "status": "INACTIVE"}, res.Data)
}

func TestProjectDeferredFieldValue(t *testing.T) {
	f := newFixture(t)
	p := deferred.NewPromise[any]()
	bean := &userBean{id: 1, address: p.Future()}
	p.Resolve(&addressBean{city: "Suwon"})

	res := f.project(t, `{ address { city } }`, nil, bean)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"address": map[string]any{"city": "Suwon"}}, res.Data)
}

func TestProjectDeferredFailure(t *testing.T) {
	f := newFixture(t)

	res := f.project(t, `{ userId }`, nil, deferred.Failed[any](errors.New("upstream down")))

	require.Nil(t, res.Data)
	require.Equal(t, []string{"upstream down"}, errorMessages(res))
}

func TestProjectContextCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.projectCtx(ctx, t, `{ userId }`, "", nil, deferred.NewPromise[any]().Future())

	require.Nil(t, res.Data)
	require.Equal(t, []string{context.Canceled.Error()}, errorMessages(res))
}

func TestProjectAbsentSource(t *testing.T) {
	f := newFixture(t)
	var typedNil *dynamicpb.Message

	for _, source := range []any{nil, typedNil} {
		res := f.project(t, `{ userId }`, nil, source)
		require.Nil(t, res.Data)
		require.Empty(t, res.Errors)
	}
}

func TestProjectOperationSelection(t *testing.T) {
	f := newFixture(t)
	query := `query A { userId } query B { status }`
	source := map[string]any{"userId": 1, "status": "ACTIVE"}

	res := f.projectCtx(context.Background(), t, query, "B", nil, source)
	require.Equal(t, map[string]any{"status": "ACTIVE"}, res.Data)

	res = f.projectCtx(context.Background(), t, query, "", nil, source)
	require.Equal(t, []string{"operation not found"}, errorMessages(res))

	res = f.projectCtx(context.Background(), t, `mutation { userId }`, "", nil, source)
	require.Equal(t, []string{"unsupported operation type: mutation"}, errorMessages(res))
}

func TestProjectConcurrentUse(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make([]*projection.Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bean := &userBean{id: int64(i), address: &addressBean{city: "X"}}
			results[i] = f.projector.Project(context.Background(), mustParse(t, `{ userId address { city } }`), "", nil, bean)
		}(i)
	}
	wg.Wait()
	for i, res := range results {
		require.Empty(t, res.Errors)
		require.Equal(t, int64(i), res.Data.(map[string]any)["userId"])
	}
}

func mustParse(t *testing.T, query string) *language.QueryDocument {
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Error(err)
	}
	return doc
}

func TestProjectEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var (
		starts   []events.ProjectionStart
		fields   []events.FieldResolved
		finishes []events.ProjectionFinish
	)
	eventbus.Subscribe(func(_ context.Context, e events.ProjectionStart) { starts = append(starts, e) })
	eventbus.Subscribe(func(_ context.Context, e events.FieldResolved) { fields = append(fields, e) })
	eventbus.Subscribe(func(_ context.Context, e events.ProjectionFinish) { finishes = append(finishes, e) })

	f := newFixture(t)
	res := f.project(t, `query Lookup { userId address { city } }`, nil, map[string]any{
		"userId":  1,
		"address": map[string]any{},
	})
	require.Len(t, res.Errors, 1)

	require.Equal(t, []events.ProjectionStart{{Message: "acme.User", OperationName: "Lookup", OperationType: "query"}}, starts)

	var paths []string
	for _, e := range fields {
		paths = append(paths, e.Path)
		require.False(t, e.Deferred)
		require.NoError(t, e.Err)
	}
	require.Equal(t, []string{"userId", "address", "address.city"}, paths)
	require.Equal(t, "acme.Address", fields[2].Message)
	require.Equal(t, "city", fields[2].Field)

	require.Len(t, finishes, 1)
	require.Len(t, finishes[0].Errors, 1)
	require.Equal(t, "Lookup", finishes[0].OperationName)
}
