package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// markerStarted / markerResultPrefix are the stdout markers a KubernetesJob
// container must emit, per the §6 Kubernetes Job contract.
const (
	markerStarted      = "LLMCTL_EXECUTOR_STARTED"
	markerResultPrefix = "LLMCTL_EXECUTOR_RESULT_JSON="
)

// KubernetesConfig carries the recognized configuration keys from §6.
type KubernetesConfig struct {
	Namespace         string
	Image             string
	InCluster         bool
	ServiceAccount    string
	GPULimit          int64
	JobTTLSeconds     int64
	ImagePullSecrets  []string
	Kubeconfig        string // path; required unless InCluster
}

// KubernetesExecutor builds a Job manifest per node execution, submits it,
// and determines the outcome by scanning the Job's Pod log for the §6
// marker protocol. Submission is ambiguous — and therefore dispatch_failed
// with dispatch_uncertain=true, no auto-fallback — unless both markers are
// observed in order.
type KubernetesExecutor struct {
	cfg    KubernetesConfig
	client kubernetes.Interface
}

// NewKubernetesExecutor builds a client from cfg.Kubeconfig or in-cluster
// config. Returns an executor whose client is nil when the config is
// incomplete; Execute surfaces that as dispatch_failed without invoking the
// callback, matching §4.4's "Requires kubeconfig unless in_cluster=true;
// when missing, returns dispatch_failed without invoking the callback."
func NewKubernetesExecutor(cfg KubernetesConfig) (*KubernetesExecutor, error) {
	exec := &KubernetesExecutor{cfg: cfg}

	var restCfg *rest.Config
	var err error
	switch {
	case cfg.InCluster:
		restCfg, err = rest.InClusterConfig()
	case cfg.Kubeconfig != "":
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	default:
		return exec, nil // client stays nil: missing config, handled in Execute
	}
	if err != nil {
		return nil, fmt.Errorf("kubernetes executor: building client config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes executor: building clientset: %w", err)
	}
	exec.client = client
	return exec, nil
}

func (k *KubernetesExecutor) jobName(req ExecutionRequest) string {
	return fmt.Sprintf("llmctl-run-%s-node-%s-exec-%d", sanitizeK8sName(req.RunID), sanitizeK8sName(req.NodeID), req.ExecutionIndex)
}

func resourceQuantity(n int64) *resource.Quantity {
	q := resource.NewQuantity(n, resource.DecimalSI)
	return q
}

func sanitizeK8sName(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, s)
	return strings.Trim(s, "-")
}

func (k *KubernetesExecutor) buildJob(req ExecutionRequest) *batchv1.Job {
	labelSet := map[string]string{
		"llmctl.io/workspace-identity": req.WorkspaceIdentity,
		"llmctl.io/run-id":             req.RunID,
		"llmctl.io/node-id":            req.NodeID,
	}

	var resourceLimits corev1.ResourceList
	if k.cfg.GPULimit > 0 {
		resourceLimits = corev1.ResourceList{
			"nvidia.com/gpu": *resourceQuantity(k.cfg.GPULimit),
		}
	}

	var pullSecrets []corev1.LocalObjectReference
	for _, s := range k.cfg.ImagePullSecrets {
		pullSecrets = append(pullSecrets, corev1.LocalObjectReference{Name: s})
	}

	ttl := int32(k.cfg.JobTTLSeconds)
	backoffLimit := int32(0)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      k.jobName(req),
			Namespace: k.cfg.Namespace,
			Labels:    labelSet,
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttl,
			BackoffLimit:            &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labelSet},
				Spec: corev1.PodSpec{
					RestartPolicy:      corev1.RestartPolicyNever,
					ServiceAccountName: k.cfg.ServiceAccount,
					ImagePullSecrets:   pullSecrets,
					Containers: []corev1.Container{
						{
							Name:  "executor",
							Image: k.cfg.Image,
							Resources: corev1.ResourceRequirements{
								Limits: resourceLimits,
							},
						},
					},
				},
			},
		},
	}
}

// Execute submits a Job and blocks until the Pod's log stream yields a
// terminal marker outcome.
func (k *KubernetesExecutor) Execute(ctx context.Context, req ExecutionRequest, cb Callback) (ExecutionResult, error) {
	meta := RunMetadata{
		SelectedProvider:  "kubernetes",
		FinalProvider:     "kubernetes",
		WorkspaceIdentity: req.WorkspaceIdentity,
	}

	if k.client == nil {
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta}, nil
	}

	job := k.buildJob(req)
	meta.ProviderDispatchID = fmt.Sprintf("kubernetes:%s", job.Name)

	created, err := k.client.BatchV1().Jobs(k.cfg.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta, Err: err}, nil
	}

	output, uncertain, execErr := k.awaitResult(ctx, created.Name)
	if uncertain {
		meta.DispatchStatus = DispatchFailed
		meta.DispatchUncertain = true
		return ExecutionResult{Status: "failed", Metadata: meta}, nil
	}
	if execErr != nil {
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta, Err: execErr}, nil
	}

	meta.DispatchStatus = DispatchConfirmed
	return ExecutionResult{Status: "success", Output: output, Metadata: meta}, nil
}

// awaitResult scans the Job's Pod log for the marker protocol. Returns
// uncertain=true when markerStarted never appears before the stream ends,
// or markerResultPrefix never appears after it — both are "ambiguous" per
// §4.4 and never auto-fallback.
func (k *KubernetesExecutor) awaitResult(ctx context.Context, jobName string) (map[string]interface{}, bool, error) {
	podName, err := k.findPodForJob(ctx, jobName)
	if err != nil {
		return nil, true, err
	}

	req := k.client.CoreV1().Pods(k.cfg.Namespace).GetLogs(podName, &corev1.PodLogOptions{Follow: true})
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, true, err
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	sawStart := false
	for scanner.Scan() {
		line := scanner.Text()
		if !sawStart {
			if strings.TrimSpace(line) == markerStarted {
				sawStart = true
			}
			continue
		}
		if strings.HasPrefix(line, markerResultPrefix) {
			var result map[string]interface{}
			raw := strings.TrimPrefix(line, markerResultPrefix)
			if err := json.Unmarshal([]byte(raw), &result); err != nil {
				return nil, false, fmt.Errorf("kubernetes executor: decoding result json: %w", err)
			}
			return result, false, nil
		}
	}
	return nil, true, nil
}

func (k *KubernetesExecutor) findPodForJob(ctx context.Context, jobName string) (string, error) {
	selector := labels.SelectorFromSet(labels.Set{"job-name": jobName}).String()
	pods, err := k.client.CoreV1().Pods(k.cfg.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", err
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("kubernetes executor: no pod found for job %s", jobName)
	}
	return pods.Items[0].Name, nil
}

// Cancel deletes the Job gracefully, then forcefully if forceKill is set.
func (k *KubernetesExecutor) Cancel(ctx context.Context, req ExecutionRequest, graceSeconds int, forceKill bool) error {
	if k.client == nil {
		return fmt.Errorf("kubernetes executor: no client configured")
	}
	name := k.jobName(req)
	grace := int64(graceSeconds)
	propagation := metav1.DeletePropagationBackground

	err := k.client.BatchV1().Jobs(k.cfg.Namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
		PropagationPolicy:  &propagation,
	})
	if err == nil || !forceKill {
		return err
	}

	zero := int64(0)
	return k.client.BatchV1().Jobs(k.cfg.Namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: &zero,
		PropagationPolicy:  &propagation,
	})
}

// PruneCompletedJobs deletes completed Jobs older than jobTTLSeconds. Meant
// to be called periodically by the scheduler (C11) as a belt-and-braces
// cleanup alongside Kubernetes's own ttlSecondsAfterFinished controller.
func (k *KubernetesExecutor) PruneCompletedJobs(ctx context.Context, jobTTLSeconds int64) error {
	if k.client == nil {
		return fmt.Errorf("kubernetes executor: no client configured")
	}
	jobs, err := k.client.BatchV1().Jobs(k.cfg.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-time.Duration(jobTTLSeconds) * time.Second)
	for _, job := range jobs.Items {
		if job.Status.CompletionTime == nil {
			continue
		}
		if job.Status.CompletionTime.Time.After(cutoff) {
			continue
		}
		propagation := metav1.DeletePropagationBackground
		if err := k.client.BatchV1().Jobs(k.cfg.Namespace).Delete(ctx, job.Name, metav1.DeleteOptions{PropagationPolicy: &propagation}); err != nil {
			return err
		}
	}
	return nil
}
