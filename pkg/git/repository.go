/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/util"
)

const defaultRemote = "origin"

type Repository struct {
	Options Options
}

func NewRepository(dir string) *Repository {
	return &Repository{
		Options: Options{
			CWD: dir,
		},
	}
}

type Options struct {
	CWD string
}

// CloneAtTag fetches a repository into dir with its worktree checked
// out at the named tag. The release run builds from this checkout, so
// the clone is shallow and pinned to the single ref.
func CloneAtTag(ctx context.Context, repoURL, tag, dir string) (*Repository, error) {
	logrus.Infof("Cloning %s at tag %s", repoURL, tag)
	if _, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewTagReferenceName(tag),
		SingleBranch:  true,
		Depth:         1,
	}); err != nil {
		return nil, fmt.Errorf("cloning %s at %s: %w", repoURL, tag, err)
	}
	return NewRepository(dir), nil
}

// SourceURL returns the repository URL
func (r *Repository) SourceURL() (string, error) {
	if !util.Exists(filepath.Join(r.Options.CWD, "/.git")) {
		logrus.Debugf("Directory %s is not a git repository", r.Options.CWD)
		return "", nil
	}

	repo, err := gogit.PlainOpen(r.Options.CWD)
	if err != nil {
		return "", fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}

	remote, err := repo.Remote(defaultRemote)
	if err != nil {
		return "", fmt.Errorf("getting repository remote: %w", err)
	}

	if len(remote.Config().URLs) == 0 {
		return "", errors.New("repo remote does not have URLs")
	}

	return remote.Config().URLs[0], nil
}

// HeadCommit returns the commit the worktree is checked out at
func (r *Repository) HeadCommit() (string, error) {
	repo, err := gogit.PlainOpen(r.Options.CWD)
	if err != nil {
		return "", fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading repository head: %w", err)
	}
	return head.Hash().String(), nil
}
