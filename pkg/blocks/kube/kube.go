// Package kube implements the "kube" block: the active kubeconfig context
// with node readiness, pod phase and deployment counts, fetched off the
// event loop via client-go.
package kube

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Type is the configuration name of this block.
const Type = "kube"

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
	DefaultFormat   = "{context} {running}/{pods}"
)

var placeholders = []string{
	"context", "namespace",
	"nodes", "ready_nodes",
	"pods", "running", "pending", "succeeded", "failed",
	"deployments", "available_deployments",
}

// ---------- Configuration ----------

// Config holds the block-specific keys.
type Config struct {
	Interval config.Duration `toml:"interval"`
	Timeout  config.Duration `toml:"timeout"`
	Format   string          `toml:"format"`
	MaxWidth int             `toml:"max_width"`

	// Kubeconfig is the path to a kubeconfig file. If empty, the default
	// loading rules apply (KUBECONFIG env, ~/.kube/config, in-cluster).
	Kubeconfig string `toml:"kubeconfig"`

	// Context overrides the kubeconfig's current context.
	Context string `toml:"context"`

	// Namespace restricts pod and deployment counts. Empty means all.
	Namespace string `toml:"namespace"`
}

// ---------- Result types ----------

// ClusterStatus is the result of one poll.
type ClusterStatus struct {
	Context     string
	Namespace   string
	Nodes       int
	ReadyNodes  int
	Pods        PodCounts
	Deployments int
	Available   int
}

// PodCounts tracks pod phase counts.
type PodCounts struct {
	Total     int
	Running   int
	Pending   int
	Succeeded int
	Failed    int
	Unknown   int
}

// ---------- Client interface ----------

// Client abstracts Kubernetes API calls for testability.
type Client interface {
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)
	ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error)
}

// realClient wraps a kubernetes.Clientset to implement Client.
type realClient struct {
	cs *kubernetes.Clientset
}

func (r *realClient) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := r.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (r *realClient) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	list, err := r.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (r *realClient) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	list, err := r.cs.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// clientFactory returns a Client for a kubeconfig path and context, along
// with the resolved context name. Tests inject their own.
type clientFactory func(kubeconfig, context string) (Client, string, error)

func defaultClientFactory(kubeconfig, ctxName string) (Client, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{}
	if ctxName != "" {
		overrides.CurrentContext = ctxName
	}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	if ctxName == "" {
		raw, err := loader.RawConfig()
		if err != nil {
			return nil, "", fmt.Errorf("load kubeconfig: %w", err)
		}
		ctxName = raw.CurrentContext
	}

	cfg, err := loader.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("build client config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("create clientset: %w", err)
	}
	return &realClient{cs: cs}, ctxName, nil
}

// ---------- Block ----------

// Block shows cluster status for one context.
type Block struct {
	cfg      Config
	factory  clientFactory
	waker    bar.Waker
	format   *blocks.Format
	interval time.Duration
	timeout  time.Duration
}

// New is the blocks.Factory for "kube".
func New(env blocks.Env) (bar.Block, error) {
	cfg := Config{Format: DefaultFormat}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	return newBlock(env, cfg, defaultClientFactory)
}

func newBlock(env blocks.Env, cfg Config, factory clientFactory) (*Block, error) {
	if env.Waker == nil {
		return nil, fmt.Errorf("kube block needs a waker")
	}
	f, err := blocks.ParseFormat(cfg.Format, placeholders...)
	if err != nil {
		return nil, err
	}
	return &Block{
		cfg:      cfg,
		factory:  factory,
		waker:    env.Waker,
		format:   f.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultInterval),
		timeout:  blocks.Interval(cfg.Timeout, DefaultTimeout),
	}, nil
}

func (b *Block) Interval() time.Duration { return b.interval }

// Update starts a poll off the loop; the result arrives through Consume.
func (b *Block) Update(ctx context.Context) (bar.Segment, error) {
	err := b.waker.Go(b.timeout, func(ctx context.Context) (any, error) {
		return b.collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return nil, bar.ErrDeferred
}

func (b *Block) Consume(ctx context.Context, payload any) (bar.Segment, error) {
	st, ok := payload.(*ClusterStatus)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	return b.render(st), nil
}

// Click polls again on a left click.
func (b *Block) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if ev.Button == protocol.ButtonLeft {
		b.waker.Refresh()
	}
	return nil, false, nil
}

// collect gathers status for the configured context. Node listing proves
// connectivity; pod and deployment failures are errors too since the
// counts would be misleading.
func (b *Block) collect(ctx context.Context) (*ClusterStatus, error) {
	client, ctxName, err := b.factory(b.cfg.Kubeconfig, b.cfg.Context)
	if err != nil {
		return nil, err
	}
	st := &ClusterStatus{Context: ctxName, Namespace: b.cfg.Namespace}

	nodes, err := client.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	st.Nodes = len(nodes)
	for i := range nodes {
		if isNodeReady(&nodes[i]) {
			st.ReadyNodes++
		}
	}

	pods, err := client.ListPods(ctx, b.cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	st.Pods = countPodPhases(pods)

	deps, err := client.ListDeployments(ctx, b.cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	st.Deployments = len(deps)
	for i := range deps {
		if isDeploymentAvailable(&deps[i]) {
			st.Available++
		}
	}
	return st, nil
}

func (b *Block) render(st *ClusterStatus) bar.Segment {
	text := b.format.Render(map[string]string{
		"context":               st.Context,
		"namespace":             st.Namespace,
		"nodes":                 strconv.Itoa(st.Nodes),
		"ready_nodes":           strconv.Itoa(st.ReadyNodes),
		"pods":                  strconv.Itoa(st.Pods.Total),
		"running":               strconv.Itoa(st.Pods.Running),
		"pending":               strconv.Itoa(st.Pods.Pending),
		"succeeded":             strconv.Itoa(st.Pods.Succeeded),
		"failed":                strconv.Itoa(st.Pods.Failed),
		"deployments":           strconv.Itoa(st.Deployments),
		"available_deployments": strconv.Itoa(st.Available),
	})

	state := bar.StateIdle
	switch {
	case st.ReadyNodes < st.Nodes || st.Pods.Failed > 0 || st.Available < st.Deployments:
		state = bar.StateWarning
	case st.Pods.Pending > 0:
		state = bar.StateInfo
	}
	return bar.Segment{{Text: text, Icon: "kube", State: state}}
}

// ---------- helpers ----------

// isNodeReady checks whether a node has a Ready condition set to True.
func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// isDeploymentAvailable reports whether every desired replica is available.
// A nil replica count means the API default of one.
func isDeploymentAvailable(d *appsv1.Deployment) bool {
	want := int32(1)
	if d.Spec.Replicas != nil {
		want = *d.Spec.Replicas
	}
	return d.Status.AvailableReplicas >= want
}

func countPodPhases(pods []corev1.Pod) PodCounts {
	var pc PodCounts
	for i := range pods {
		pc.Total++
		switch pods[i].Status.Phase {
		case corev1.PodRunning:
			pc.Running++
		case corev1.PodPending:
			pc.Pending++
		case corev1.PodSucceeded:
			pc.Succeeded++
		case corev1.PodFailed:
			pc.Failed++
		default:
			pc.Unknown++
		}
	}
	return pc
}
