package kube

import (
	"context"
	"errors"
	"strings"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// ---------- Mock Client ----------

type mockClient struct {
	nodes       []corev1.Node
	nodesErr    error
	pods        map[string][]corev1.Pod // namespace -> pods (empty key = all)
	podsErr     error
	deployments map[string][]appsv1.Deployment
	depsErr     error
}

func (m *mockClient) ListNodes(_ context.Context) ([]corev1.Node, error) {
	return m.nodes, m.nodesErr
}

func (m *mockClient) ListPods(_ context.Context, namespace string) ([]corev1.Pod, error) {
	if m.podsErr != nil {
		return nil, m.podsErr
	}
	return m.pods[namespace], nil
}

func (m *mockClient) ListDeployments(_ context.Context, namespace string) ([]appsv1.Deployment, error) {
	if m.depsErr != nil {
		return nil, m.depsErr
	}
	return m.deployments[namespace], nil
}

// ---------- Helper builders ----------

func makeNode(name string, ready bool) corev1.Node {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: status}},
		},
	}
}

func makePod(name, namespace string, phase corev1.PodPhase) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

func makeDeployment(name string, replicas *int32, available int32) appsv1.Deployment {
	return appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       appsv1.DeploymentSpec{Replicas: replicas},
		Status:     appsv1.DeploymentStatus{AvailableReplicas: available},
	}
}

func int32Ptr(v int32) *int32 { return &v }

func healthyCluster() *mockClient {
	return &mockClient{
		nodes: []corev1.Node{makeNode("honey", true), makeNode("bumble", true)},
		pods: map[string][]corev1.Pod{
			"": {
				makePod("api-1", "default", corev1.PodRunning),
				makePod("api-2", "default", corev1.PodRunning),
				makePod("migrate", "default", corev1.PodSucceeded),
			},
			"monitoring": {
				makePod("prom", "monitoring", corev1.PodRunning),
				makePod("grafana", "monitoring", corev1.PodPending),
			},
		},
		deployments: map[string][]appsv1.Deployment{
			"": {makeDeployment("api", int32Ptr(2), 2)},
		},
	}
}

func newTestBlock(t *testing.T, cfg Config, client Client, factoryErr error) (*Block, *blocks.SyncWaker) {
	t.Helper()
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	w := &blocks.SyncWaker{}
	factory := func(_, ctxName string) (Client, string, error) {
		if factoryErr != nil {
			return nil, "", factoryErr
		}
		if ctxName == "" {
			ctxName = "tinyland"
		}
		return client, ctxName, nil
	}
	b, err := newBlock(blocks.Env{ID: bar.Identity{Name: Type, Instance: "0"}, Waker: w}, cfg, factory)
	if err != nil {
		t.Fatalf("newBlock: %v", err)
	}
	return b, w
}

func poll(t *testing.T, b *Block, w *blocks.SyncWaker) (bar.Segment, error) {
	t.Helper()
	if _, err := b.Update(context.Background()); !errors.Is(err, bar.ErrDeferred) {
		t.Fatalf("Update err = %v, want ErrDeferred", err)
	}
	payload, err := w.Last()
	if err != nil {
		return nil, err
	}
	return b.Consume(context.Background(), payload)
}

// ---------- Tests ----------

func TestHealthyCluster(t *testing.T) {
	b, w := newTestBlock(t, Config{}, healthyCluster(), nil)
	if b.Interval() != DefaultInterval {
		t.Errorf("Interval = %v", b.Interval())
	}
	seg, err := poll(t, b, w)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if seg[0].Text != "tinyland 2/3" {
		t.Errorf("Text = %q", seg[0].Text)
	}
	if seg[0].State != bar.StateIdle || seg[0].Icon != "kube" {
		t.Errorf("part = %+v", seg[0])
	}
}

func TestNamespaceAndContextOverride(t *testing.T) {
	cfg := Config{
		Context:   "prod",
		Namespace: "monitoring",
		Format:    "{context}/{namespace} {running} run {pending} pend",
	}
	b, w := newTestBlock(t, cfg, healthyCluster(), nil)
	seg, err := poll(t, b, w)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if seg[0].Text != "prod/monitoring 1 run 1 pend" {
		t.Errorf("Text = %q", seg[0].Text)
	}
	if seg[0].State != bar.StateInfo {
		t.Errorf("State = %v, want info for pending pods", seg[0].State)
	}
}

func TestDegradedClusterWarns(t *testing.T) {
	tests := map[string]func(*mockClient){
		"node not ready": func(m *mockClient) { m.nodes[1] = makeNode("bumble", false) },
		"failed pod": func(m *mockClient) {
			m.pods[""] = append(m.pods[""], makePod("crash", "default", corev1.PodFailed))
		},
		"unavailable deployment": func(m *mockClient) {
			m.deployments[""] = append(m.deployments[""], makeDeployment("worker", nil, 0))
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			client := healthyCluster()
			mutate(client)
			b, w := newTestBlock(t, Config{Format: "{ready_nodes}/{nodes} {failed} {available_deployments}/{deployments}"}, client, nil)
			seg, err := poll(t, b, w)
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if seg[0].State != bar.StateWarning {
				t.Errorf("State = %v, want warning (text %q)", seg[0].State, seg[0].Text)
			}
		})
	}
}

func TestCollectErrors(t *testing.T) {
	tests := []struct {
		name       string
		client     *mockClient
		factoryErr error
		want       string
	}{
		{"no kubeconfig", nil, errors.New("build client config: no configuration"), "build client config"},
		{"nodes", &mockClient{nodesErr: errors.New("connection refused")}, nil, "list nodes"},
		{"pods", &mockClient{podsErr: errors.New("forbidden")}, nil, "list pods"},
		{"deployments", &mockClient{depsErr: errors.New("forbidden")}, nil, "list deployments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, w := newTestBlock(t, Config{}, tt.client, tt.factoryErr)
			_, err := poll(t, b, w)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCountPodPhases(t *testing.T) {
	pc := countPodPhases([]corev1.Pod{
		makePod("a", "x", corev1.PodRunning),
		makePod("b", "x", corev1.PodPending),
		makePod("c", "x", corev1.PodSucceeded),
		makePod("d", "x", corev1.PodFailed),
		makePod("e", "x", corev1.PodUnknown),
	})
	want := PodCounts{Total: 5, Running: 1, Pending: 1, Succeeded: 1, Failed: 1, Unknown: 1}
	if pc != want {
		t.Errorf("countPodPhases = %+v, want %+v", pc, want)
	}
}

func TestDeploymentNilReplicas(t *testing.T) {
	d := makeDeployment("api", nil, 1)
	if !isDeploymentAvailable(&d) {
		t.Error("nil replicas with one available should be available")
	}
	d = makeDeployment("api", int32Ptr(0), 0)
	if !isDeploymentAvailable(&d) {
		t.Error("scaled to zero should be available")
	}
}

func TestClickRefreshes(t *testing.T) {
	b, w := newTestBlock(t, Config{}, healthyCluster(), nil)
	_, changed, _ := b.Click(context.Background(), protocol.ClickEvent{Button: protocol.ButtonLeft})
	if changed || w.Refreshes != 1 {
		t.Errorf("changed=%v refreshes=%d", changed, w.Refreshes)
	}
}

func TestConfigErrors(t *testing.T) {
	w := &blocks.SyncWaker{}
	if _, err := newBlock(blocks.Env{Waker: w}, Config{Format: "{cluster}"}, defaultClientFactory); err == nil {
		t.Error("expected unknown placeholder error")
	}
	if _, err := newBlock(blocks.Env{}, Config{Format: DefaultFormat}, defaultClientFactory); err == nil {
		t.Error("expected error without waker")
	}
}
